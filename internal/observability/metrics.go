// Package observability provides the Prometheus metrics surface shared by
// the kernel, gateway, and bundled connector plugins.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is a centralized set of Prometheus collectors for the kernel's
// own concerns (spec.md §4): hook dispatch, tool/command execution, LLM
// calls, the gateway's HTTP surface, and the bundled connector plugins'
// message flow.
type Metrics struct {
	// MessageCounter tracks messages by connector plugin and direction.
	// Labels: plugin (telegram|discord|...), direction (inbound|outbound)
	MessageCounter *prometheus.CounterVec

	// LLMRequestDuration measures provider completion latency in seconds.
	// Labels: provider, model
	LLMRequestDuration *prometheus.HistogramVec

	// LLMRequestCounter counts provider completions by outcome.
	// Labels: provider, model, status (success|error)
	LLMRequestCounter *prometheus.CounterVec

	// LLMTokensUsed tracks token consumption.
	// Labels: provider, model, type (prompt|completion)
	LLMTokensUsed *prometheus.CounterVec

	// LLMCostUSD tracks estimated cost in USD.
	// Labels: provider, model
	LLMCostUSD *prometheus.CounterVec

	// ContextWindowUsed tracks context window utilization per call.
	// Labels: provider, model
	ContextWindowUsed *prometheus.HistogramVec

	// ToolExecutionCounter counts tool invocations.
	// Labels: tool_id, status (success|error)
	ToolExecutionCounter *prometheus.CounterVec

	// ToolExecutionDuration measures tool execution time in seconds.
	// Labels: tool_id
	ToolExecutionDuration *prometheus.HistogramVec

	// HookDispatchCounter counts hook dispatches by domain/event and
	// whether any handler failed (spec.md §4.2's failures[]).
	// Labels: domain, event, outcome (clean|failures)
	HookDispatchCounter *prometheus.CounterVec

	// HookDispatchDuration measures a full dispatch call's wall time.
	// Labels: domain, event
	HookDispatchDuration *prometheus.HistogramVec

	// ErrorCounter tracks errors by component and error type.
	// Labels: component, error_type
	ErrorCounter *prometheus.CounterVec

	// ActiveSessions is a gauge tracking current active agent sessions.
	ActiveSessions prometheus.Gauge

	// SessionDuration measures session lifetime in seconds.
	SessionDuration prometheus.Histogram

	// HTTPRequestDuration measures gateway HTTP request latency.
	// Labels: method, path, status_code
	HTTPRequestDuration *prometheus.HistogramVec

	// HTTPRequestCounter counts gateway HTTP requests.
	// Labels: method, path, status_code
	HTTPRequestCounter *prometheus.CounterVec
}

// NewMetrics creates and registers every collector with the default
// Prometheus registry. Call once at kernel startup.
func NewMetrics() *Metrics {
	return &Metrics{
		MessageCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "slashbot_messages_total",
				Help: "Total number of connector messages by plugin and direction",
			},
			[]string{"plugin", "direction"},
		),

		LLMRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "slashbot_llm_request_duration_seconds",
				Help:    "Duration of provider completion calls in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider", "model"},
		),

		LLMRequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "slashbot_llm_requests_total",
				Help: "Total number of provider completion calls by outcome",
			},
			[]string{"provider", "model", "status"},
		),

		LLMTokensUsed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "slashbot_llm_tokens_total",
				Help: "Total number of tokens used by provider, model, and type",
			},
			[]string{"provider", "model", "type"},
		),

		LLMCostUSD: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "slashbot_llm_cost_usd_total",
				Help: "Estimated provider completion cost in USD",
			},
			[]string{"provider", "model"},
		),

		ContextWindowUsed: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "slashbot_context_window_tokens",
				Help:    "Context window tokens used per completion call",
				Buckets: []float64{1000, 4000, 8000, 16000, 32000, 64000, 128000},
			},
			[]string{"provider", "model"},
		),

		ToolExecutionCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "slashbot_tool_executions_total",
				Help: "Total number of tool executions by tool id and status",
			},
			[]string{"tool_id", "status"},
		),

		ToolExecutionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "slashbot_tool_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool_id"},
		),

		HookDispatchCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "slashbot_hook_dispatches_total",
				Help: "Total number of hook dispatches by domain, event, and outcome",
			},
			[]string{"domain", "event", "outcome"},
		),

		HookDispatchDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "slashbot_hook_dispatch_duration_seconds",
				Help:    "Duration of a full hook dispatch call in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"domain", "event"},
		),

		ErrorCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "slashbot_errors_total",
				Help: "Total number of errors by component and error type",
			},
			[]string{"component", "error_type"},
		),

		ActiveSessions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "slashbot_active_sessions",
				Help: "Current number of active agent sessions",
			},
		),

		SessionDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "slashbot_session_duration_seconds",
				Help:    "Duration of agent sessions in seconds",
				Buckets: []float64{60, 300, 600, 1800, 3600, 7200, 14400, 28800},
			},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "slashbot_http_request_duration_seconds",
				Help:    "Duration of gateway HTTP requests in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"method", "path", "status_code"},
		),

		HTTPRequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "slashbot_http_requests_total",
				Help: "Total number of gateway HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
	}
}

// RecordLLMRequest records metrics for one provider completion call.
func (m *Metrics) RecordLLMRequest(provider, model, status string, durationSeconds float64, promptTokens, completionTokens int) {
	m.LLMRequestCounter.WithLabelValues(provider, model, status).Inc()
	m.LLMRequestDuration.WithLabelValues(provider, model).Observe(durationSeconds)
	if promptTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
	}
	m.ContextWindowUsed.WithLabelValues(provider, model).Observe(float64(promptTokens + completionTokens))
}

// RecordLLMCost records estimated provider completion cost.
func (m *Metrics) RecordLLMCost(provider, model string, costUSD float64) {
	m.LLMCostUSD.WithLabelValues(provider, model).Add(costUSD)
}

// RecordToolExecution records metrics for a tool execution.
func (m *Metrics) RecordToolExecution(toolID, status string, durationSeconds float64) {
	m.ToolExecutionCounter.WithLabelValues(toolID, status).Inc()
	m.ToolExecutionDuration.WithLabelValues(toolID).Observe(durationSeconds)
}

// RecordHookDispatch records one hooks.Dispatcher.Dispatch call's outcome.
func (m *Metrics) RecordHookDispatch(domain, event string, failureCount int, durationSeconds float64) {
	outcome := "clean"
	if failureCount > 0 {
		outcome = "failures"
	}
	m.HookDispatchCounter.WithLabelValues(domain, event, outcome).Inc()
	m.HookDispatchDuration.WithLabelValues(domain, event).Observe(durationSeconds)
}

// RecordError increments the error counter for a given component and error type.
func (m *Metrics) RecordError(component, errorType string) {
	m.ErrorCounter.WithLabelValues(component, errorType).Inc()
}

// MessageReceived increments the message counter for an inbound connector message.
func (m *Metrics) MessageReceived(plugin string) {
	m.MessageCounter.WithLabelValues(plugin, "inbound").Inc()
}

// MessageSent increments the message counter for an outbound connector message.
func (m *Metrics) MessageSent(plugin string) {
	m.MessageCounter.WithLabelValues(plugin, "outbound").Inc()
}

// SessionStarted increments the active sessions gauge.
func (m *Metrics) SessionStarted() {
	m.ActiveSessions.Inc()
}

// SessionEnded decrements the active sessions gauge and records session duration.
func (m *Metrics) SessionEnded(durationSeconds float64) {
	m.ActiveSessions.Dec()
	m.SessionDuration.Observe(durationSeconds)
}

// RecordHTTPRequest records metrics for a gateway HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, statusCode string, durationSeconds float64) {
	m.HTTPRequestCounter.WithLabelValues(method, path, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path, statusCode).Observe(durationSeconds)
}
