// Package metrics provides observability for the enforcement engine
package metrics

import (
	"net/http"
	"time"
)

// Metrics provides observability for the enforcement engine
type Metrics interface {
	// Evaluation metrics
	RecordEvaluation(outcome string, duration time.Duration)
	RecordDenial(class string)
	RecordPDPError(kind string)
	IncActiveEvaluations()
	DecActiveEvaluations()

	// Compiler metrics
	RecordCompileFailure()
	RecordConstraintCount(count int)

	// Closure query metrics
	RecordClosureQuery(table string, duration time.Duration)

	// Mutation protocol metrics
	RecordMutation(operation string, outcome string) // applied, not_found

	// HTTP handler for Prometheus scraping
	HTTPHandler() http.Handler
}

// Evaluation outcomes.
const (
	OutcomeAllowUnscoped = "allow_unscoped"
	OutcomeAllowScoped   = "allow_scoped"
	OutcomeDeny          = "deny"
)

// Denial classes. Policy denials are expected traffic; the others signal an
// unhealthy PDP or a broken deployment and alert separately.
const (
	DenialPolicy              = "policy"
	DenialConstraintsRequired = "constraints_required"
	DenialEmptyConstraints    = "empty_constraints"
	DenialCompileFailed       = "compile_failed"
	DenialPDPUnreachable      = "pdp_unreachable"
	DenialPDPMalformed        = "pdp_malformed"
)

// NoOpMetrics provides a no-op implementation for testing/disabled monitoring
type NoOpMetrics struct{}

// NewNoOpMetrics creates a new no-op metrics instance
func NewNoOpMetrics() *NoOpMetrics {
	return &NoOpMetrics{}
}

func (n *NoOpMetrics) RecordEvaluation(outcome string, duration time.Duration) {}
func (n *NoOpMetrics) RecordDenial(class string) {}
func (n *NoOpMetrics) RecordPDPError(kind string) {}
func (n *NoOpMetrics) IncActiveEvaluations() {}
func (n *NoOpMetrics) DecActiveEvaluations() {}
func (n *NoOpMetrics) RecordCompileFailure() {}
func (n *NoOpMetrics) RecordConstraintCount(count int) {}
func (n *NoOpMetrics) RecordClosureQuery(table string, duration time.Duration) {}
func (n *NoOpMetrics) RecordMutation(operation string, outcome string) {}

// HTTPHandler returns a no-op handler
func (n *NoOpMetrics) HTTPHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("# NoOp metrics - monitoring disabled\n"))
	})
}
