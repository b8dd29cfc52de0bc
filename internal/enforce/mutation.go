package enforce

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/authz-engine/pep-core/internal/registry"
	"github.com/authz-engine/pep-core/pkg/scope"
	"github.com/authz-engine/pep-core/pkg/types"
)

// ErrPrefetchMiss is returned by Prefetcher implementations when the
// resource does not exist. The guard converts it to ErrNotFound so callers
// see the same signal as a scoped-out resource.
var ErrPrefetchMiss = errors.New("resource not found during prefetch")

// Prefetcher reads a resource's current scoping attributes by primary key.
// It runs before evaluation so the PDP judges the resource's real ownership
// rather than caller-supplied claims. The values it returns may be stale by
// the time the mutation executes; the scoped statement closes that window.
type Prefetcher interface {
	Prefetch(ctx context.Context, resourceID uuid.UUID) (map[string]any, error)
}

// PrefetchFunc adapts a function to Prefetcher.
type PrefetchFunc func(ctx context.Context, resourceID uuid.UUID) (map[string]any, error)

// Prefetch implements Prefetcher.
func (f PrefetchFunc) Prefetch(ctx context.Context, resourceID uuid.UUID) (map[string]any, error) {
	return f(ctx, resourceID)
}

// MutationGuard runs the mutation protocol for one resource type:
//
//  1. prefetch the resource's scoping attributes,
//  2. evaluate with require_constraints so an unscoped allow cannot slip a
//     mutation past row-level policy,
//  3. hand the compiled scope to the store layer, which applies it in the
//     same statement as the primary-key match.
//
// The returned scope reflects the policy at evaluation time; applying it
// atomically with the mutation makes a concurrent ownership change surface
// as zero rows affected, never as an unauthorized write.
type MutationGuard struct {
	enforcer *PolicyEnforcer
	prefetch Prefetcher
	rt       ResourceType
	logger   *zap.Logger
}

// NewMutationGuard wires a guard for one resource type. A nil prefetcher
// skips step 1: deployments that declare the tenant hierarchy capability get
// subtree constraints that do not depend on the row's current attributes, so
// the scoped statement alone closes the window and the extra read is not
// needed.
func NewMutationGuard(enforcer *PolicyEnforcer, prefetch Prefetcher, rt ResourceType, logger *zap.Logger) *MutationGuard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MutationGuard{enforcer: enforcer, prefetch: prefetch, rt: rt, logger: logger}
}

// PrepareUpdate authorizes an update of one resource and returns the scope
// the store layer must apply in the update statement itself.
func (g *MutationGuard) PrepareUpdate(ctx context.Context, sec types.SecurityContext, resourceID uuid.UUID, tenantCtx *types.TenantContext) (scope.AccessScope, error) {
	return g.prepare(ctx, sec, "update", resourceID, tenantCtx)
}

// PrepareDelete authorizes a delete of one resource and returns the scope
// the store layer must apply in the delete statement itself.
func (g *MutationGuard) PrepareDelete(ctx context.Context, sec types.SecurityContext, resourceID uuid.UUID, tenantCtx *types.TenantContext) (scope.AccessScope, error) {
	return g.prepare(ctx, sec, "delete", resourceID, tenantCtx)
}

func (g *MutationGuard) prepare(ctx context.Context, sec types.SecurityContext, action string, resourceID uuid.UUID, tenantCtx *types.TenantContext) (scope.AccessScope, error) {
	var props map[string]any
	if g.prefetch != nil {
		var err error
		props, err = g.prefetch.Prefetch(ctx, resourceID)
		if err != nil {
			if errors.Is(err, ErrPrefetchMiss) {
				return scope.DenyAll(), ErrNotFound
			}
			return scope.DenyAll(), fmt.Errorf("prefetch failed: %w", err)
		}
	}

	return g.enforcer.ResolveScope(ctx, sec, g.rt, AccessRequest{
		Action:             action,
		ResourceID:         &resourceID,
		ResourceProperties: props,
		TenantContext:      tenantCtx,
		RequireConstraints: true,
	})
}

// AuthorizeCreate authorizes creation of a resource with the proposed
// attributes. There is no row yet, so the PDP's constraints are checked in
// memory against the proposed values: creation is allowed only if the new
// resource would fall inside the caller's own scope. Constraints are
// demanded just like for update and delete; an allow without them does not
// authorize a write.
func (g *MutationGuard) AuthorizeCreate(ctx context.Context, sec types.SecurityContext, proposed map[string]any, tenantCtx *types.TenantContext) error {
	compiled, err := g.enforcer.ResolveScope(ctx, sec, g.rt, AccessRequest{
		Action:             "create",
		ResourceProperties: proposed,
		TenantContext:      tenantCtx,
		RequireConstraints: true,
	})
	if err != nil {
		return err
	}

	row, err := proposedRow(proposed)
	if err != nil {
		g.logger.Warn("create denied, proposed attributes not comparable",
			zap.String("resource_type", g.rt.Name),
			zap.Error(err),
		)
		return ErrForbidden
	}
	if !compiled.Matches(row) {
		g.logger.Info("create denied, proposed resource outside caller scope",
			zap.String("resource_type", g.rt.Name),
			zap.String("subject_id", sec.SubjectID.String()),
		)
		return ErrForbidden
	}
	return nil
}

func proposedRow(proposed map[string]any) (scope.Row, error) {
	row := make(scope.Row, len(proposed))
	for property, raw := range proposed {
		v, err := registry.ValueFromJSON(raw)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", property, err)
		}
		row[property] = v
	}
	return row, nil
}
