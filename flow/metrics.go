package flow

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides Prometheus-compatible collectors for workflow tree
// execution, namespaced "flowtree":
//
//  1. workflows_total (counter): Completed workflow runs.
//     Labels: status (completed, failed).
//  2. inflight_workflows (gauge): Workflows currently running.
//  3. step_latency_ms (histogram): Step body duration in milliseconds.
//     Labels: step, status.
//  4. task_children (histogram): Child workflows spawned per task.
//  5. observer_panics_total (counter): Observer callbacks recovered from a
//     panic and routed to the diagnostic channel.
//  6. cache_lookups_total (counter): Cached-step lookups.
//     Labels: result (hit, miss).
//  7. reflection_retries_total (counter): Step retries requested by the
//     reflection collaborator.
//
// All recording methods are safe on a nil receiver, so metrics remain
// strictly optional.
type Metrics struct {
	workflowsTotal    *prometheus.CounterVec
	inflightWorkflows prometheus.Gauge
	stepLatency       *prometheus.HistogramVec
	taskChildren      prometheus.Histogram
	observerPanics    prometheus.Counter
	cacheLookups      *prometheus.CounterVec
	reflectionRetries prometheus.Counter
}

// NewMetrics creates and registers all workflow collectors with the given
// registry. A nil registry falls back to prometheus.DefaultRegisterer.
//
// Use a dedicated registry for isolation:
//
//	registry := prometheus.NewRegistry()
//	metrics := flow.NewMetrics(registry)
//	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		workflowsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flowtree",
			Name:      "workflows_total",
			Help:      "Workflow runs that reached a terminal status",
		}, []string{"status"}),
		inflightWorkflows: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "flowtree",
			Name:      "inflight_workflows",
			Help:      "Workflows currently executing",
		}),
		stepLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "flowtree",
			Name:      "step_latency_ms",
			Help:      "Step body duration in milliseconds",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000},
		}, []string{"step", "status"}),
		taskChildren: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "flowtree",
			Name:      "task_children",
			Help:      "Child workflows spawned per task",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64, 128},
		}),
		observerPanics: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "flowtree",
			Name:      "observer_panics_total",
			Help:      "Observer callbacks recovered from a panic",
		}),
		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flowtree",
			Name:      "cache_lookups_total",
			Help:      "Cached-step lookups by result",
		}, []string{"result"}),
		reflectionRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "flowtree",
			Name:      "reflection_retries_total",
			Help:      "Step retries requested by the reflection collaborator",
		}),
	}
}

func (m *Metrics) workflowStarted() {
	if m == nil {
		return
	}
	m.inflightWorkflows.Inc()
}

func (m *Metrics) workflowFinished(status Status) {
	if m == nil {
		return
	}
	m.inflightWorkflows.Dec()
	m.workflowsTotal.WithLabelValues(string(status)).Inc()
}

func (m *Metrics) recordStepLatency(step string, latency time.Duration, status string) {
	if m == nil {
		return
	}
	m.stepLatency.WithLabelValues(step, status).Observe(float64(latency.Milliseconds()))
}

func (m *Metrics) recordTaskChildren(count int) {
	if m == nil {
		return
	}
	m.taskChildren.Observe(float64(count))
}

func (m *Metrics) observerPanicked() {
	if m == nil {
		return
	}
	m.observerPanics.Inc()
}

func (m *Metrics) recordCacheLookup(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) reflectionRetried() {
	if m == nil {
		return
	}
	m.reflectionRetries.Inc()
}
