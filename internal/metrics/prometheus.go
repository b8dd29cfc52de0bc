package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics implements Metrics using Prometheus with an atomic fast
// path for the evaluation counters.
type PrometheusMetrics struct {
	evaluationsAllow atomic.Uint64
	evaluationsDeny  atomic.Uint64

	evaluationsTotal   *prometheus.CounterVec
	denialsTotal       *prometheus.CounterVec
	pdpErrorsTotal     *prometheus.CounterVec
	activeEvaluations  prometheus.Gauge
	evaluationDuration prometheus.Histogram

	compileFailures prometheus.Counter
	constraintCount prometheus.Histogram

	closureQueries       *prometheus.CounterVec
	closureQueryDuration prometheus.Histogram

	mutationsTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewPrometheusMetrics creates a new Prometheus metrics instance
func NewPrometheusMetrics(namespace string) *PrometheusMetrics {
	registry := prometheus.NewRegistry()

	// Register standard Go metrics
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	evaluationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Total number of enforced evaluations by outcome",
		},
		[]string{"outcome"},
	)

	denialsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "denials_total",
			Help:      "Total number of denials by class",
		},
		[]string{"class"},
	)

	pdpErrorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pdp",
			Name:      "errors_total",
			Help:      "Total number of PDP call failures by kind",
		},
		[]string{"kind"},
	)

	activeEvaluations := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_evaluations",
			Help:      "Number of in-flight evaluations",
		},
	)

	// End-to-end enforcement latency is dominated by the PDP round trip:
	// 1ms to 5s
	evaluationDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluation_duration_milliseconds",
			Help:      "End-to-end evaluation latency in milliseconds",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
		},
	)

	compileFailures := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "compiler",
			Name:      "failures_total",
			Help:      "Total number of constraint lists that compiled to deny",
		},
	)

	constraintCount := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "compiler",
			Name:      "constraints_per_response",
			Help:      "Number of constraints per PDP response",
			Buckets:   []float64{1, 2, 3, 5, 10, 25, 50},
		},
	)

	closureQueries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "closure",
			Name:      "queries_total",
			Help:      "Total number of closure table queries by table",
		},
		[]string{"table"},
	)

	// Closure lookups are indexed point scans: 0.1ms to 100ms
	closureQueryDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "closure",
			Name:      "query_duration_milliseconds",
			Help:      "Closure table query latency in milliseconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 25, 50, 100},
		},
	)

	mutationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mutation",
			Name:      "operations_total",
			Help:      "Total number of scoped mutations by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	registry.MustRegister(
		evaluationsTotal,
		denialsTotal,
		pdpErrorsTotal,
		activeEvaluations,
		evaluationDuration,
		compileFailures,
		constraintCount,
		closureQueries,
		closureQueryDuration,
		mutationsTotal,
	)

	return &PrometheusMetrics{
		evaluationsTotal:     evaluationsTotal,
		denialsTotal:         denialsTotal,
		pdpErrorsTotal:       pdpErrorsTotal,
		activeEvaluations:    activeEvaluations,
		evaluationDuration:   evaluationDuration,
		compileFailures:      compileFailures,
		constraintCount:      constraintCount,
		closureQueries:       closureQueries,
		closureQueryDuration: closureQueryDuration,
		mutationsTotal:       mutationsTotal,
		registry:             registry,
	}
}

// RecordEvaluation records an enforced evaluation (atomic fast path)
func (p *PrometheusMetrics) RecordEvaluation(outcome string, duration time.Duration) {
	if outcome == OutcomeDeny {
		p.evaluationsDeny.Add(1)
	} else {
		p.evaluationsAllow.Add(1)
	}

	p.evaluationsTotal.WithLabelValues(outcome).Inc()
	p.evaluationDuration.Observe(float64(duration.Milliseconds()))
}

// RecordDenial records a denial by class
func (p *PrometheusMetrics) RecordDenial(class string) {
	p.denialsTotal.WithLabelValues(class).Inc()
}

// RecordPDPError records a PDP call failure
func (p *PrometheusMetrics) RecordPDPError(kind string) {
	p.pdpErrorsTotal.WithLabelValues(kind).Inc()
}

// IncActiveEvaluations increments in-flight evaluations
func (p *PrometheusMetrics) IncActiveEvaluations() {
	p.activeEvaluations.Inc()
}

// DecActiveEvaluations decrements in-flight evaluations
func (p *PrometheusMetrics) DecActiveEvaluations() {
	p.activeEvaluations.Dec()
}

// RecordCompileFailure records a constraint list that compiled to deny
func (p *PrometheusMetrics) RecordCompileFailure() {
	p.compileFailures.Inc()
}

// RecordConstraintCount records the constraint count of one PDP response
func (p *PrometheusMetrics) RecordConstraintCount(count int) {
	p.constraintCount.Observe(float64(count))
}

// RecordClosureQuery records a closure table lookup
func (p *PrometheusMetrics) RecordClosureQuery(table string, duration time.Duration) {
	p.closureQueries.WithLabelValues(table).Inc()
	p.closureQueryDuration.Observe(float64(duration.Milliseconds()))
}

// RecordMutation records a scoped mutation outcome
func (p *PrometheusMetrics) RecordMutation(operation string, outcome string) {
	p.mutationsTotal.WithLabelValues(operation, outcome).Inc()
}

// HTTPHandler returns the Prometheus HTTP handler for /metrics endpoint
func (p *PrometheusMetrics) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
