package enforce

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/authz-engine/pep-core/internal/compiler"
	"github.com/authz-engine/pep-core/internal/metrics"
	"github.com/authz-engine/pep-core/internal/pdp"
	"github.com/authz-engine/pep-core/internal/registry"
	"github.com/authz-engine/pep-core/pkg/scope"
	"github.com/authz-engine/pep-core/pkg/types"
)

// DefaultPDPTimeout bounds a single PDP round trip when the enforcer config
// does not set one. An expired deadline denies; it is never retried here.
const DefaultPDPTimeout = 5 * time.Second

// ResourceType describes one protected resource kind: its PDP type name and
// the authorization properties the local data layer can filter on. Declared
// once at startup, shared by every request for that kind.
type ResourceType struct {
	Name                string
	SupportedProperties []string
}

// AccessRequest is one authorization question about a resource type.
type AccessRequest struct {
	// Action is the operation name (list, get, create, update, delete).
	Action string
	// ResourceID is set for point reads and mutations.
	ResourceID *uuid.UUID
	// ResourceProperties carries resource attributes for evaluation, e.g.
	// the prefetched owning tenant during the mutation protocol.
	ResourceProperties map[string]any
	// TenantContext scopes the evaluation within the tenant hierarchy.
	TenantContext *types.TenantContext
	// RequireConstraints demands row-level constraints from the PDP. An
	// allow without constraints then denies. Mutations always set it.
	RequireConstraints bool
}

// EnforcerConfig carries the enforcer's collaborator-independent settings.
type EnforcerConfig struct {
	PDPTimeout time.Duration
	Logger     *zap.Logger
	Metrics    metrics.Metrics
}

// PolicyEnforcer asks the PDP one question per operation and converts the
// answer into an AccessScope or a denial. It holds no decision cache: scopes
// are derived fresh for every request.
type PolicyEnforcer struct {
	client   pdp.Client
	compiler *compiler.Compiler
	env      registry.BuildEnv
	neg      *Negotiator
	timeout  time.Duration
	logger   *zap.Logger
	metrics  metrics.Metrics
}

// NewPolicyEnforcer wires the enforcer. env may be nil when no closure
// tables are deployed; hierarchical predicates then fail closed, which the
// negotiator should reflect by not declaring those capabilities.
func NewPolicyEnforcer(client pdp.Client, comp *compiler.Compiler, env registry.BuildEnv, neg *Negotiator, cfg EnforcerConfig) *PolicyEnforcer {
	if cfg.PDPTimeout <= 0 {
		cfg.PDPTimeout = DefaultPDPTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNoOpMetrics()
	}
	if neg == nil {
		neg = NewNegotiator()
	}
	return &PolicyEnforcer{
		client:   client,
		compiler: comp,
		env:      env,
		neg:      neg,
		timeout:  cfg.PDPTimeout,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
	}
}

// ResolveScope evaluates one request and returns the enforced scope. The
// only error values are ErrForbidden (wrapping nothing caller-visible) so
// denial reasons stay in the internal log.
func (e *PolicyEnforcer) ResolveScope(ctx context.Context, sec types.SecurityContext, rt ResourceType, req AccessRequest) (scope.AccessScope, error) {
	e.metrics.IncActiveEvaluations()
	defer e.metrics.DecActiveEvaluations()
	start := time.Now()

	evalReq := e.buildRequest(sec, rt, req)

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.client.Evaluate(callCtx, &evalReq)
	if err != nil {
		return e.denyOnPDPError(rt, req, err, start), ErrForbidden
	}

	return e.enforce(ctx, sec, rt, req, resp, start)
}

// ResolveScopeBatch evaluates several requests for the same subject and
// resource type, returning scopes in request order. Each item carries its
// own outcome; a transport failure denies the whole batch.
func (e *PolicyEnforcer) ResolveScopeBatch(ctx context.Context, sec types.SecurityContext, rt ResourceType, reqs []AccessRequest) ([]scope.AccessScope, []error) {
	e.metrics.IncActiveEvaluations()
	defer e.metrics.DecActiveEvaluations()
	start := time.Now()

	evalReqs := make([]types.EvaluationRequest, len(reqs))
	for i, req := range reqs {
		evalReqs[i] = e.buildRequest(sec, rt, req)
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	scopes := make([]scope.AccessScope, len(reqs))
	errs := make([]error, len(reqs))

	resps, err := e.client.EvaluateBatch(callCtx, evalReqs)
	if err != nil {
		for i := range reqs {
			scopes[i] = e.denyOnPDPError(rt, reqs[i], err, start)
			errs[i] = ErrForbidden
		}
		return scopes, errs
	}

	for i := range reqs {
		scopes[i], errs[i] = e.enforce(ctx, sec, rt, reqs[i], &resps[i], start)
	}
	return scopes, errs
}

// Capabilities returns the negotiator's declared capability list.
func (e *PolicyEnforcer) Capabilities() []types.Capability {
	return e.neg.Declare()
}

func (e *PolicyEnforcer) buildRequest(sec types.SecurityContext, rt ResourceType, req AccessRequest) types.EvaluationRequest {
	subject := types.Subject{
		ID:   sec.SubjectID,
		Type: sec.SubjectType,
	}
	if sec.SubjectTenantID != uuid.Nil {
		subject.Properties = map[string]any{"tenant_id": sec.SubjectTenantID.String()}
	}

	return types.EvaluationRequest{
		Subject: subject,
		Action:  types.Action{Name: req.Action},
		Resource: types.Resource{
			Type:       rt.Name,
			ID:         req.ResourceID,
			Properties: req.ResourceProperties,
		},
		Context: types.RequestContext{
			TenantContext:       req.TenantContext,
			TokenScopes:         sec.TokenScopes,
			RequireConstraints:  req.RequireConstraints,
			Capabilities:        e.neg.Declare(),
			SupportedProperties: rt.SupportedProperties,
			BearerToken:         sec.BearerToken(),
		},
	}
}

func (e *PolicyEnforcer) enforce(ctx context.Context, sec types.SecurityContext, rt ResourceType, req AccessRequest, resp *types.EvaluationResponse, start time.Time) (scope.AccessScope, error) {
	switch Decide(resp, req.RequireConstraints) {
	case OutcomeAllowAll:
		e.metrics.RecordEvaluation(metrics.OutcomeAllowUnscoped, time.Since(start))
		return scope.AllowAll(), nil

	case OutcomeCompile:
		constraints := resp.ConstraintList()
		e.metrics.RecordConstraintCount(len(constraints))

		compiled, err := e.compiler.Compile(ctx, constraints, rt.SupportedProperties, e.env)
		if err != nil {
			e.metrics.RecordCompileFailure()
			e.recordDenial(metrics.DenialCompileFailed, start)
			e.logger.Warn("constraints compiled to deny",
				zap.String("resource_type", rt.Name),
				zap.String("action", req.Action),
				zap.String("subject_id", sec.SubjectID.String()),
				zap.Error(err),
			)
			return scope.DenyAll(), ErrForbidden
		}
		e.metrics.RecordEvaluation(metrics.OutcomeAllowScoped, time.Since(start))
		return compiled, nil

	default:
		e.logDeny(sec, rt, req, resp, start)
		return scope.DenyAll(), ErrForbidden
	}
}

func (e *PolicyEnforcer) denyOnPDPError(rt ResourceType, req AccessRequest, err error, start time.Time) scope.AccessScope {
	class := metrics.DenialPDPMalformed
	kind := "malformed"
	if pdp.IsUnreachable(err) {
		class = metrics.DenialPDPUnreachable
		kind = "unreachable"
	}
	e.metrics.RecordPDPError(kind)
	e.recordDenial(class, start)

	// Availability failures are logged as incidents, not as policy denials.
	e.logger.Error("pdp evaluation failed, denying",
		zap.String("resource_type", rt.Name),
		zap.String("action", req.Action),
		zap.String("failure_kind", kind),
		zap.Error(err),
	)
	return scope.DenyAll()
}

// logDeny records the deny with its reason. DenyReason.Details stays in this
// log record and never reaches the caller.
func (e *PolicyEnforcer) logDeny(sec types.SecurityContext, rt ResourceType, req AccessRequest, resp *types.EvaluationResponse, start time.Time) {
	class := metrics.DenialPolicy
	fields := []zap.Field{
		zap.String("resource_type", rt.Name),
		zap.String("action", req.Action),
		zap.String("subject_id", sec.SubjectID.String()),
	}

	switch {
	case resp == nil || !resp.Decision:
		if resp != nil && resp.Context.DenyReason != nil {
			fields = append(fields,
				zap.String("error_code", resp.Context.DenyReason.ErrorCode),
				zap.String("details", resp.Context.DenyReason.Details),
			)
		}
	case !resp.HasConstraints():
		class = metrics.DenialConstraintsRequired
	default:
		class = metrics.DenialEmptyConstraints
	}

	e.recordDenial(class, start)
	fields = append(fields, zap.String("denial_class", class))
	e.logger.Info("access denied", fields...)
}

func (e *PolicyEnforcer) recordDenial(class string, start time.Time) {
	e.metrics.RecordDenial(class)
	e.metrics.RecordEvaluation(metrics.OutcomeDeny, time.Since(start))
}
