package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes the pipeline and dispatcher counters on a private
// registry. It satisfies both the research and tools metrics interfaces.
type Metrics struct {
	registry *prometheus.Registry

	completions  *prometheus.CounterVec
	reflections  prometheus.Counter
	dispatches   *prometheus.CounterVec
	toolFailures *prometheus.CounterVec
	sessions     prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		completions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "insight_completion_calls_total",
			Help: "Completion calls by pipeline stage and outcome.",
		}, []string{"stage", "outcome"}),
		reflections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "insight_reflections_total",
			Help: "Reflection iterations executed.",
		}),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "insight_tool_dispatches_total",
			Help: "Tool dispatches by tool name and whether the default tool was substituted.",
		}, []string{"tool", "fallback"}),
		toolFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "insight_tool_failures_total",
			Help: "Tool executions that failed after retries.",
		}, []string{"tool"}),
		sessions: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "insight_session_duration_seconds",
			Help:    "Wall-clock duration of completed research sessions.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
	}
	m.registry.MustRegister(m.completions, m.reflections, m.dispatches, m.toolFailures, m.sessions)
	return m
}

func (m *Metrics) CompletionCall(stage, outcome string) {
	m.completions.WithLabelValues(stage, outcome).Inc()
}

func (m *Metrics) Reflection() {
	m.reflections.Inc()
}

func (m *Metrics) ToolDispatched(tool string, fallback bool) {
	label := "false"
	if fallback {
		label = "true"
	}
	m.dispatches.WithLabelValues(tool, label).Inc()
}

func (m *Metrics) ToolFailed(tool string) {
	m.toolFailures.WithLabelValues(tool).Inc()
}

func (m *Metrics) SessionDuration(seconds float64) {
	m.sessions.Observe(seconds)
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
