// Package audit provides a minimal structured audit trail of tool,
// command, plugin, and session lifecycle events (SPEC_FULL.md §C.4):
// tool id, plugin id, outcome, elapsed. Not part of spec.md itself; carried
// as ambient observability the teacher always builds alongside command
// execution.
package audit

import (
	"encoding/json"
	"time"
)

// EventType categorizes audit events.
type EventType string

const (
	// Tool events
	EventToolInvocation EventType = "tool.invocation"
	EventToolCompletion EventType = "tool.completion"

	// Command events
	EventCommandInvocation EventType = "command.invocation"
	EventCommandCompletion EventType = "command.completion"

	// Plugin lifecycle events
	EventPluginLoaded      EventType = "plugin.loaded"
	EventPluginFailed      EventType = "plugin.failed"
	EventPluginDeactivated EventType = "plugin.deactivated"

	// Session lifecycle events
	EventSessionStart EventType = "session.start"
	EventSessionEnd   EventType = "session.end"

	// Hook dispatch events
	EventHookDispatch EventType = "hook.dispatch"

	// Gateway events
	EventGatewayStartup  EventType = "gateway.startup"
	EventGatewayShutdown EventType = "gateway.shutdown"
	EventGatewayError    EventType = "gateway.error"
)

// Level represents audit log severity.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Event represents a single audit log entry.
type Event struct {
	// ID is a unique identifier for this audit event.
	ID string `json:"id"`

	// Type categorizes the event.
	Type EventType `json:"type"`

	// Level is the severity level.
	Level Level `json:"level"`

	// Timestamp when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// SessionID identifies the session context (spec.md §3's startSession id).
	SessionID string `json:"session_id,omitempty"`

	// PluginID identifies the plugin that owns the tool/command/hook involved.
	PluginID string `json:"plugin_id,omitempty"`

	// ToolID identifies the tool for tool-related events.
	ToolID string `json:"tool_id,omitempty"`

	// ToolCallID links to a specific tool invocation.
	ToolCallID string `json:"tool_call_id,omitempty"`

	// CommandID identifies the command for command-related events.
	CommandID string `json:"command_id,omitempty"`

	// Action describes what happened.
	Action string `json:"action"`

	// Outcome is a short success/failure/denied classification.
	Outcome string `json:"outcome,omitempty"`

	// Details contains event-specific structured data.
	Details map[string]any `json:"details,omitempty"`

	// Duration is the elapsed time for timed operations.
	Duration time.Duration `json:"duration,omitempty"`

	// Error contains error information if applicable.
	Error string `json:"error,omitempty"`

	// TraceID for distributed tracing correlation.
	TraceID string `json:"trace_id,omitempty"`

	// SpanID for distributed tracing correlation.
	SpanID string `json:"span_id,omitempty"`
}

// ToolInvocationDetails contains details for tool invocation events.
type ToolInvocationDetails struct {
	ToolID     string          `json:"tool_id"`
	ToolCallID string          `json:"tool_call_id"`
	Input      json.RawMessage `json:"input,omitempty"`
	InputHash  string          `json:"input_hash,omitempty"` // for privacy, hash sensitive inputs
}

// ToolCompletionDetails contains details for tool completion events.
type ToolCompletionDetails struct {
	ToolID     string `json:"tool_id"`
	ToolCallID string `json:"tool_call_id"`
	Success    bool   `json:"success"`
	OutputSize int    `json:"output_size,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// OutputFormat specifies the audit log output format.
type OutputFormat string

const (
	FormatJSON   OutputFormat = "json"
	FormatLogfmt OutputFormat = "logfmt"
	FormatText   OutputFormat = "text"
)

// Config configures the audit logger.
type Config struct {
	// Enabled determines if audit logging is active.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Level is the minimum level to log.
	Level Level `json:"level" yaml:"level"`

	// Format specifies the output format.
	Format OutputFormat `json:"format" yaml:"format"`

	// Output specifies where to write logs.
	// Supported: "stdout", "stderr", "file:/path/to/file.log"
	Output string `json:"output" yaml:"output"`

	// IncludeToolInput determines if tool inputs are logged verbatim.
	// Set to false for privacy-sensitive environments.
	IncludeToolInput bool `json:"include_tool_input" yaml:"include_tool_input"`

	// IncludeToolOutput determines if tool outputs are logged verbatim.
	IncludeToolOutput bool `json:"include_tool_output" yaml:"include_tool_output"`

	// MaxFieldSize limits the size of logged fields.
	MaxFieldSize int `json:"max_field_size" yaml:"max_field_size"`

	// EventTypes filters which event types to log (empty = all).
	EventTypes []EventType `json:"event_types" yaml:"event_types"`

	// SampleRate controls what fraction of events are logged (0.0 to 1.0).
	SampleRate float64 `json:"sample_rate" yaml:"sample_rate"`

	// BufferSize is the size of the async write buffer.
	BufferSize int `json:"buffer_size" yaml:"buffer_size"`

	// FlushInterval is how often to flush the buffer.
	FlushInterval time.Duration `json:"flush_interval" yaml:"flush_interval"`
}

// DefaultConfig returns a default audit configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:           false,
		Level:             LevelInfo,
		Format:            FormatJSON,
		Output:            "stdout",
		IncludeToolInput:  false,
		IncludeToolOutput: false,
		MaxFieldSize:      1024,
		SampleRate:        1.0,
		BufferSize:        1000,
		FlushInterval:     5 * time.Second,
	}
}
