package activity

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics collects Prometheus metrics for circuit invocations.
//
// Metrics exposed (all namespaced with "activity_"):
//
// 1. inflight_invocations (gauge): Invocations currently running.
// Labels: circuit.
//
// 2. step_latency_ms (histogram): Row duration in milliseconds, task-wrap included.
// Labels: circuit, row_id, semantic ("error" when the row failed).
//
// 3. invocations_total (counter): Finished invocations.
// Labels: circuit, status (the terminus reached, or "error").
//
// 4. routing_errors_total (counter): Invocations that failed while routing.
// Labels: circuit, row_id, kind (no_route, unknown_signal, missing_input).
//
// Usage:
//
//	registry := prometheus.NewRegistry()
//	metrics := activity.NewPrometheusMetrics(registry)
//	circuit, err := activity.Compile(seq, activity.WithMetrics(metrics))
//
//	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
//
// Safe for concurrent use.
type PrometheusMetrics struct {
	inflight      *prometheus.GaugeVec
	stepLatency   *prometheus.HistogramVec
	invocations   *prometheus.CounterVec
	routingErrors *prometheus.CounterVec

	registry prometheus.Registerer
	enabled  atomic.Bool
}

// NewPrometheusMetrics creates and registers all circuit metrics with registry.
// A nil registry means prometheus.DefaultRegisterer.
func NewPrometheusMetrics(registry prometheus.Registerer) *PrometheusMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	pm := &PrometheusMetrics{registry: registry}
	pm.enabled.Store(true)

	pm.inflight = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "activity",
		Name:      "inflight_invocations",
		Help:      "Number of circuit invocations currently running",
	}, []string{"circuit"})

	pm.stepLatency = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "activity",
		Name:      "step_latency_ms",
		Help:      "Row execution duration in milliseconds, including the task wrap",
		Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000},
	}, []string{"circuit", "row_id", "semantic"})

	pm.invocations = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "activity",
		Name:      "invocations_total",
		Help:      "Finished circuit invocations by terminus reached",
	}, []string{"circuit", "status"})

	pm.routingErrors = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "activity",
		Name:      "routing_errors_total",
		Help:      "Invocations aborted because a signal could not be routed or an input was missing",
	}, []string{"circuit", "row_id", "kind"})

	return pm
}

// RecordStepLatency observes the duration of one row.
func (pm *PrometheusMetrics) RecordStepLatency(circuit, rowID, semantic string, latency time.Duration) {
	if !pm.enabled.Load() {
		return
	}
	pm.stepLatency.WithLabelValues(circuit, rowID, semantic).Observe(float64(latency.Milliseconds()))
}

// IncrementInvocations counts a finished invocation.
func (pm *PrometheusMetrics) IncrementInvocations(circuit, status string) {
	if !pm.enabled.Load() {
		return
	}
	pm.invocations.WithLabelValues(circuit, status).Inc()
}

// IncrementRoutingErrors counts a routing failure at rowID.
func (pm *PrometheusMetrics) IncrementRoutingErrors(circuit, rowID, kind string) {
	if !pm.enabled.Load() {
		return
	}
	pm.routingErrors.WithLabelValues(circuit, rowID, kind).Inc()
}

// InvocationStarted increments the inflight gauge.
func (pm *PrometheusMetrics) InvocationStarted(circuit string) {
	if !pm.enabled.Load() {
		return
	}
	pm.inflight.WithLabelValues(circuit).Inc()
}

// InvocationFinished decrements the inflight gauge.
func (pm *PrometheusMetrics) InvocationFinished(circuit string) {
	if !pm.enabled.Load() {
		return
	}
	pm.inflight.WithLabelValues(circuit).Dec()
}

// Disable stops recording. Useful in tests and benchmarks.
func (pm *PrometheusMetrics) Disable() {
	pm.enabled.Store(false)
}

// Enable resumes recording.
func (pm *PrometheusMetrics) Enable() {
	pm.enabled.Store(true)
}
