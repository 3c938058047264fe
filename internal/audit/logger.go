package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/slashbot/slashbot/internal/observability"
)

// Logger provides structured audit logging with configurable output
// formats and privacy controls, for the tool/command/plugin/session/gateway
// events SPEC_FULL.md §C.4 calls for.
//
// Usage:
//
//	logger, err := audit.NewLogger(audit.Config{
//	    Enabled: true,
//	    Level:   audit.LevelInfo,
//	    Format:  audit.FormatJSON,
//	    Output:  "stdout",
//	})
//	defer logger.Close()
//
//	logger.LogToolInvocation(ctx, "web_search", "call-123", "plugin-search", input)
type Logger struct {
	config     Config
	output     io.WriteCloser
	slogger    *slog.Logger
	buffer     chan *Event
	wg         sync.WaitGroup
	done       chan struct{}
	eventTypes map[EventType]bool
}

// NewLogger creates a new audit logger with the given configuration.
func NewLogger(config Config) (*Logger, error) {
	if !config.Enabled {
		return &Logger{config: config}, nil
	}

	if config.SampleRate == 0 {
		config.SampleRate = 1.0
	}
	if config.BufferSize == 0 {
		config.BufferSize = 1000
	}
	if config.FlushInterval == 0 {
		config.FlushInterval = 5 * time.Second
	}
	if config.MaxFieldSize == 0 {
		config.MaxFieldSize = 1024
	}

	var output io.WriteCloser
	switch {
	case config.Output == "stdout" || config.Output == "":
		output = os.Stdout
	case config.Output == "stderr":
		output = os.Stderr
	case strings.HasPrefix(config.Output, "file:"):
		path := strings.TrimPrefix(config.Output, "file:")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit log file: %w", err)
		}
		output = f
	default:
		return nil, fmt.Errorf("unsupported audit output: %s", config.Output)
	}

	eventTypes := make(map[EventType]bool)
	for _, et := range config.EventTypes {
		eventTypes[et] = true
	}

	l := &Logger{
		config:     config,
		output:     output,
		buffer:     make(chan *Event, config.BufferSize),
		done:       make(chan struct{}),
		eventTypes: eventTypes,
	}

	var handler slog.Handler
	switch config.Format {
	case FormatText:
		handler = slog.NewTextHandler(output, &slog.HandlerOptions{Level: l.slogLevel()})
	default:
		handler = slog.NewJSONHandler(output, &slog.HandlerOptions{Level: l.slogLevel()})
	}
	l.slogger = slog.New(handler).With("component", "audit")

	l.wg.Add(1)
	go l.writeLoop()

	return l, nil
}

// Close flushes remaining events and closes the logger.
func (l *Logger) Close() error {
	if !l.config.Enabled {
		return nil
	}

	close(l.done)
	l.wg.Wait()

	if l.output != os.Stdout && l.output != os.Stderr {
		return l.output.Close()
	}
	return nil
}

// Log writes an audit event to the log.
func (l *Logger) Log(ctx context.Context, event *Event) {
	if !l.config.Enabled {
		return
	}

	if l.config.SampleRate < 1.0 && rand.Float64() > l.config.SampleRate {
		return
	}

	if len(l.eventTypes) > 0 && !l.eventTypes[event.Type] {
		return
	}

	if !l.shouldLog(event.Level) {
		return
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.TraceID == "" {
		event.TraceID = observability.GetTraceID(ctx)
	}
	if event.SpanID == "" {
		event.SpanID = observability.GetSpanID(ctx)
	}

	select {
	case l.buffer <- event:
	default:
		// Buffer full, log directly (slower but doesn't drop).
		l.writeEvent(event)
	}
}

// LogToolInvocation logs a tool invocation event.
func (l *Logger) LogToolInvocation(ctx context.Context, toolID, toolCallID, pluginID string, input json.RawMessage) {
	details := map[string]any{}

	if l.config.IncludeToolInput && input != nil {
		inputStr := string(input)
		if len(inputStr) > l.config.MaxFieldSize {
			inputStr = inputStr[:l.config.MaxFieldSize] + "...(truncated)"
		}
		details["input"] = inputStr
	} else if input != nil {
		details["input_hash"] = hashString(string(input))
	}

	l.Log(ctx, &Event{
		Type:       EventToolInvocation,
		Level:      LevelInfo,
		PluginID:   pluginID,
		ToolID:     toolID,
		ToolCallID: toolCallID,
		Action:     "tool_invoked",
		Details:    details,
	})
}

// LogToolCompletion logs a tool completion event (SPEC_FULL.md §C.4: tool
// id, plugin id, outcome, elapsed).
func (l *Logger) LogToolCompletion(ctx context.Context, toolID, toolCallID, pluginID string, ok bool, output string, duration time.Duration) {
	level := LevelInfo
	outcome := "success"
	if !ok {
		level = LevelWarn
		outcome = "error"
	}

	details := map[string]any{}
	if l.config.IncludeToolOutput && output != "" {
		outputStr := output
		if len(outputStr) > l.config.MaxFieldSize {
			outputStr = outputStr[:l.config.MaxFieldSize] + "...(truncated)"
		}
		details["output"] = outputStr
	} else if output != "" {
		details["output_size"] = len(output)
	}

	l.Log(ctx, &Event{
		Type:       EventToolCompletion,
		Level:      level,
		PluginID:   pluginID,
		ToolID:     toolID,
		ToolCallID: toolCallID,
		Action:     "tool_completed",
		Outcome:    outcome,
		Details:    details,
		Duration:   duration,
	})
}

// LogCommandInvocation logs a command invocation event.
func (l *Logger) LogCommandInvocation(ctx context.Context, commandID, pluginID string, args []string) {
	l.Log(ctx, &Event{
		Type:      EventCommandInvocation,
		Level:     LevelInfo,
		PluginID:  pluginID,
		CommandID: commandID,
		Action:    "command_invoked",
		Details:   map[string]any{"args": args},
	})
}

// LogCommandCompletion logs a command completion event, carrying the
// exit code CommandDefinition.execute returns (spec.md §3).
func (l *Logger) LogCommandCompletion(ctx context.Context, commandID, pluginID string, exitCode int, duration time.Duration) {
	level := LevelInfo
	outcome := "success"
	if exitCode != 0 {
		level = LevelWarn
		outcome = "error"
	}

	l.Log(ctx, &Event{
		Type:      EventCommandCompletion,
		Level:     level,
		PluginID:  pluginID,
		CommandID: commandID,
		Action:    "command_completed",
		Outcome:   outcome,
		Details:   map[string]any{"exit_code": exitCode},
		Duration:  duration,
	})
}

// LogPluginLoaded logs a plugin reaching the ready state.
func (l *Logger) LogPluginLoaded(ctx context.Context, pluginID, sourcePath string) {
	l.Log(ctx, &Event{
		Type:     EventPluginLoaded,
		Level:    LevelInfo,
		PluginID: pluginID,
		Action:   "plugin_loaded",
		Outcome:  "success",
		Details:  map[string]any{"source_path": sourcePath},
	})
}

// LogPluginFailed logs a plugin that failed setup or activation
// (PluginDiagnostic{status: failed}, spec.md §3).
func (l *Logger) LogPluginFailed(ctx context.Context, pluginID, sourcePath, reason string) {
	l.Log(ctx, &Event{
		Type:     EventPluginFailed,
		Level:    LevelError,
		PluginID: pluginID,
		Action:   "plugin_failed",
		Outcome:  "error",
		Error:    reason,
		Details:  map[string]any{"source_path": sourcePath},
	})
}

// LogPluginDeactivated logs a plugin's deactivate() call during shutdown.
func (l *Logger) LogPluginDeactivated(ctx context.Context, pluginID string, err error) {
	event := &Event{
		Type:     EventPluginDeactivated,
		Level:    LevelInfo,
		PluginID: pluginID,
		Action:   "plugin_deactivated",
		Outcome:  "success",
	}
	if err != nil {
		event.Level = LevelWarn
		event.Outcome = "error"
		event.Error = err.Error()
	}
	l.Log(ctx, event)
}

// LogSessionStart logs a startSession call (spec.md §3's session lifecycle).
func (l *Logger) LogSessionStart(ctx context.Context, sessionID, agentID string) {
	l.Log(ctx, &Event{
		Type:      EventSessionStart,
		Level:     LevelInfo,
		SessionID: sessionID,
		Action:    "session_start",
		Details:   map[string]any{"agent_id": agentID},
	})
}

// LogSessionEnd logs an endSession call.
func (l *Logger) LogSessionEnd(ctx context.Context, sessionID string, duration time.Duration) {
	l.Log(ctx, &Event{
		Type:      EventSessionEnd,
		Level:     LevelInfo,
		SessionID: sessionID,
		Action:    "session_end",
		Duration:  duration,
	})
}

// LogHookDispatch logs one hooks.Dispatcher.Dispatch call's outcome
// (failures[] per spec.md §4.2).
func (l *Logger) LogHookDispatch(ctx context.Context, domain, event string, failureCount int, duration time.Duration) {
	outcome := "clean"
	level := LevelDebug
	if failureCount > 0 {
		outcome = "failures"
		level = LevelWarn
	}
	l.Log(ctx, &Event{
		Type:     EventHookDispatch,
		Level:    level,
		Action:   "hook_dispatch",
		Outcome:  outcome,
		Duration: duration,
		Details:  map[string]any{"domain": domain, "event": event, "failure_count": failureCount},
	})
}

// LogGatewayStartup logs the gateway server starting to listen.
func (l *Logger) LogGatewayStartup(ctx context.Context, addr string) {
	l.Log(ctx, &Event{
		Type:    EventGatewayStartup,
		Level:   LevelInfo,
		Action:  "gateway_startup",
		Details: map[string]any{"addr": addr},
	})
}

// LogGatewayShutdown logs the gateway server completing a graceful shutdown.
func (l *Logger) LogGatewayShutdown(ctx context.Context) {
	l.Log(ctx, &Event{
		Type:   EventGatewayShutdown,
		Level:  LevelInfo,
		Action: "gateway_shutdown",
	})
}

// LogGatewayError logs a gateway-level error (e.g. a failed lock acquisition).
func (l *Logger) LogGatewayError(ctx context.Context, action, errorMsg string) {
	l.Log(ctx, &Event{
		Type:   EventGatewayError,
		Level:  LevelError,
		Action: action,
		Error:  errorMsg,
	})
}

// writeLoop processes buffered events.
func (l *Logger) writeLoop() {
	defer l.wg.Done()

	ticker := time.NewTicker(l.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case event := <-l.buffer:
			l.writeEvent(event)
		case <-ticker.C:
			l.flushBuffer()
		case <-l.done:
			l.flushBuffer()
			return
		}
	}
}

// flushBuffer drains all buffered events.
func (l *Logger) flushBuffer() {
	for {
		select {
		case event := <-l.buffer:
			l.writeEvent(event)
		default:
			return
		}
	}
}

// writeEvent writes a single event to the output.
func (l *Logger) writeEvent(event *Event) {
	attrs := []any{
		"audit_id", event.ID,
		"audit_type", event.Type,
		"action", event.Action,
		"timestamp", event.Timestamp.Format(time.RFC3339Nano),
	}

	if event.SessionID != "" {
		attrs = append(attrs, "session_id", event.SessionID)
	}
	if event.PluginID != "" {
		attrs = append(attrs, "plugin_id", event.PluginID)
	}
	if event.ToolID != "" {
		attrs = append(attrs, "tool_id", event.ToolID)
	}
	if event.ToolCallID != "" {
		attrs = append(attrs, "tool_call_id", event.ToolCallID)
	}
	if event.CommandID != "" {
		attrs = append(attrs, "command_id", event.CommandID)
	}
	if event.Outcome != "" {
		attrs = append(attrs, "outcome", event.Outcome)
	}
	if event.TraceID != "" {
		attrs = append(attrs, "trace_id", event.TraceID)
	}
	if event.SpanID != "" {
		attrs = append(attrs, "span_id", event.SpanID)
	}
	if event.Duration > 0 {
		attrs = append(attrs, "duration_ms", event.Duration.Milliseconds())
	}
	if event.Error != "" {
		attrs = append(attrs, "error", event.Error)
	}

	for k, v := range event.Details {
		attrs = append(attrs, k, v)
	}

	switch event.Level {
	case LevelDebug:
		l.slogger.Debug("audit", attrs...)
	case LevelInfo:
		l.slogger.Info("audit", attrs...)
	case LevelWarn:
		l.slogger.Warn("audit", attrs...)
	case LevelError:
		l.slogger.Error("audit", attrs...)
	}
}

// shouldLog checks if an event at the given level should be logged.
func (l *Logger) shouldLog(level Level) bool {
	levels := map[Level]int{
		LevelDebug: 0,
		LevelInfo:  1,
		LevelWarn:  2,
		LevelError: 3,
	}
	return levels[level] >= levels[l.config.Level]
}

// slogLevel converts audit level to slog level.
func (l *Logger) slogLevel() slog.Level {
	switch l.config.Level {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// hashString creates a SHA256 hash of a string (first 16 chars).
func hashString(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])[:16]
}

// Global logger instance for convenience, mirroring slog's own package-level
// default-logger pattern.
var globalLogger *Logger
var globalMu sync.RWMutex

// SetGlobalLogger sets the global audit logger.
func SetGlobalLogger(logger *Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = logger
}

// GetGlobalLogger returns the global audit logger.
func GetGlobalLogger() *Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// Log logs an event using the global logger.
func Log(ctx context.Context, event *Event) {
	if l := GetGlobalLogger(); l != nil {
		l.Log(ctx, event)
	}
}
