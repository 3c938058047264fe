// Package kernel implements the façade spec.md §4.4 describes: the one
// object that owns every registry, the hook dispatcher, the event bus, and
// the context preparation pipeline, and exposes the handful of operations
// (runTool, runCommand, assemblePrompt, lifecycle events, health) that the
// gateway and CLI actually call. It owns no transport of its own — see
// internal/gateway for that.
package kernel

import (
	"context"
	"encoding/json"
)

// ToolError is the typed failure shape carried in a ToolResult (spec.md §3).
type ToolError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
}

// ToolResult is the canonical, dual-channel outcome of a tool execution
// (spec.md §3): Output is the raw return value, ForLLM/ForUser let a tool
// shape what the model sees versus what the user surface renders, and
// Silent suppresses user-facing emission entirely.
type ToolResult struct {
	OK       bool           `json:"ok"`
	Output   any            `json:"output,omitempty"`
	ForUser  any            `json:"forUser,omitempty"`
	ForLLM   any            `json:"forLlm,omitempty"`
	Silent   bool           `json:"silent,omitempty"`
	Error    *ToolError     `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ToolHandler is the function shape registered via plugins.API.RegisterTool
// (spec.md §3's ToolDefinition.execute). args is the tool's raw, possibly
// before_tool_call-rewritten, JSON arguments.
type ToolHandler func(ctx context.Context, args json.RawMessage) (ToolResult, error)

// CommandHandler is the function shape registered via
// plugins.API.RegisterCommand (spec.md §3's CommandDefinition.execute).
type CommandHandler func(ctx context.Context, args []string) int

// PromptSection is one named, priority-ordered contributor to
// assemblePrompt's output (spec.md §4.4). Render may return "" to
// contribute nothing for a given call.
type PromptSection struct {
	ID       string
	Priority int // 0 means DefaultPriority (100)
	Render   func(ctx context.Context) string
}

// ContextProvider contributes free-form context to the assembled prompt,
// after every PromptSection (spec.md §4.4: "context-provider outputs").
type ContextProvider func(ctx context.Context) string
