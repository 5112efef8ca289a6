package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects server metrics: tool invocations, LLM calls, token usage
// and errors. Registration happens once at startup.
type Metrics struct {
	// ToolCalls counts tool invocations.
	// Labels: tool, status (success|error)
	ToolCalls *prometheus.CounterVec

	// ToolDuration measures tool execution time in seconds.
	// Labels: tool
	ToolDuration *prometheus.HistogramVec

	// LLMRequests counts provider calls.
	// Labels: provider, model, status (success|error)
	LLMRequests *prometheus.CounterVec

	// LLMDuration measures provider call latency in seconds.
	// Labels: provider, model
	LLMDuration *prometheus.HistogramVec

	// LLMTokens tracks token consumption.
	// Labels: provider, model, type (input|output)
	LLMTokens *prometheus.CounterVec

	// Errors tracks errors by kind.
	// Labels: component (dispatcher|tool|provider|store), kind
	Errors *prometheus.CounterVec

	// ActiveThreads gauges live conversation threads.
	ActiveThreads prometheus.Gauge
}

// NewMetrics creates and registers the metric set on its own registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	return NewMetricsWithRegistry(reg)
}

// NewMetricsWithRegistry creates the metric set on the given registry.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ToolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zen_tool_calls_total",
			Help: "Tool invocations by tool and status.",
		}, []string{"tool", "status"}),
		ToolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "zen_tool_duration_seconds",
			Help:    "Tool execution time in seconds.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 120},
		}, []string{"tool"}),
		LLMRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zen_llm_requests_total",
			Help: "Provider calls by provider, model and status.",
		}, []string{"provider", "model", "status"}),
		LLMDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "zen_llm_request_duration_seconds",
			Help:    "Provider call latency in seconds.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"provider", "model"}),
		LLMTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zen_llm_tokens_total",
			Help: "Token consumption by provider, model and direction.",
		}, []string{"provider", "model", "type"}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zen_errors_total",
			Help: "Errors by component and kind.",
		}, []string{"component", "kind"}),
		ActiveThreads: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "zen_active_threads",
			Help: "Live conversation threads.",
		}),
	}
	reg.MustRegister(m.ToolCalls, m.ToolDuration, m.LLMRequests, m.LLMDuration, m.LLMTokens, m.Errors, m.ActiveThreads)
	return m
}

// RecordLLM records one provider call outcome.
func (m *Metrics) RecordLLM(provider, model, status string, seconds float64, inputTokens, outputTokens int) {
	if m == nil {
		return
	}
	m.LLMRequests.WithLabelValues(provider, model, status).Inc()
	m.LLMDuration.WithLabelValues(provider, model).Observe(seconds)
	if inputTokens > 0 {
		m.LLMTokens.WithLabelValues(provider, model, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		m.LLMTokens.WithLabelValues(provider, model, "output").Add(float64(outputTokens))
	}
}

// RecordTool records one tool invocation outcome.
func (m *Metrics) RecordTool(tool, status string, seconds float64) {
	if m == nil {
		return
	}
	m.ToolCalls.WithLabelValues(tool, status).Inc()
	m.ToolDuration.WithLabelValues(tool).Observe(seconds)
}

// RecordError counts an error for a component.
func (m *Metrics) RecordError(component, kind string) {
	if m == nil {
		return
	}
	m.Errors.WithLabelValues(component, kind).Inc()
}
