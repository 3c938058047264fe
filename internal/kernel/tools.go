package kernel

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/slashbot/slashbot/internal/hooks"
	"github.com/slashbot/slashbot/pkg/pluginsdk"
)

// RunTool implements spec.md §4.4's runTool: dispatch before_tool_call
// (which may rewrite args), validate the (possibly rewritten) args against
// the tool's declared parameters schema if one was registered, execute,
// catch a throw into TOOL_EXECUTE_ERROR, dispatch after_tool_call, emit
// tool:result, then dispatch tool_result_persist. A missing or mistyped
// tool yields TOOL_NOT_FOUND without dispatching after_tool_call; a schema
// violation yields INVALID_ARGS but still runs the rest of the pipeline,
// since the tool itself was found.
func (k *Kernel) RunTool(ctx context.Context, toolID string, args json.RawMessage) ToolResult {
	toolCallID := uuid.NewString()
	start := time.Now()

	if k.Audit != nil {
		k.Audit.LogToolInvocation(ctx, toolID, toolCallID, "", args)
	}

	raw, ok := k.Loader.Tool(toolID)
	if !ok {
		return k.notFound(toolID)
	}
	handler, ok := raw.(ToolHandler)
	if !ok {
		return k.notFound(toolID)
	}

	before := hooks.Payload{"toolId": toolID, "toolCallId": toolCallID, "args": args}
	beforeReport := k.Dispatcher.Dispatch(ctx, hooks.DomainLifecycle, hooks.EventBeforeToolCall, before)

	effectiveArgs := args
	if rewritten, ok := beforeReport.FinalPayload["args"]; ok {
		if raw, ok := rewritten.(json.RawMessage); ok {
			effectiveArgs = raw
		} else if b, err := json.Marshal(rewritten); err == nil {
			effectiveArgs = b
		}
	}

	var result ToolResult
	if schema, ok := k.Loader.ToolSchema(toolID); ok {
		if err := pluginsdk.ValidateJSON(schema, effectiveArgs); err != nil {
			result = ToolResult{OK: false, Error: &ToolError{Code: "INVALID_ARGS", Message: err.Error()}}
		}
	}
	if result.Error == nil {
		result = k.invokeTool(ctx, handler, effectiveArgs)
	}
	if s, ok := result.ForLLM.(string); ok {
		result.ForLLM = k.truncateForLLM(s)
	}
	duration := time.Since(start)

	if k.Metrics != nil {
		k.Metrics.RecordToolExecution(toolID, outcomeLabel(result.OK), duration.Seconds())
	}

	after := hooks.Payload{"toolId": toolID, "toolCallId": toolCallID, "args": effectiveArgs, "result": result}
	k.Dispatcher.Dispatch(ctx, hooks.DomainLifecycle, hooks.EventAfterToolCall, after)

	if k.Bus != nil {
		k.Bus.Publish("tool:result", map[string]any{"toolId": toolID, "toolCallId": toolCallID, "ok": result.OK})
	}

	k.Dispatcher.Dispatch(ctx, hooks.DomainLifecycle, hooks.EventToolResultPersist, hooks.Payload{
		"toolId": toolID, "toolCallId": toolCallID, "result": result,
	})

	if k.Audit != nil {
		k.Audit.LogToolCompletion(ctx, toolID, toolCallID, "", result.OK, fmt.Sprint(result.Output), duration)
	}

	return result
}

func (k *Kernel) notFound(toolID string) ToolResult {
	return ToolResult{
		OK: false,
		Error: &ToolError{
			Code:    "TOOL_NOT_FOUND",
			Message: fmt.Sprintf("tool %q is not registered", toolID),
		},
	}
}

// invokeTool calls handler, converting a panic into a TOOL_EXECUTE_ERROR
// result rather than letting it cross the kernel boundary.
func (k *Kernel) invokeTool(ctx context.Context, handler ToolHandler, args json.RawMessage) (result ToolResult) {
	defer func() {
		if p := recover(); p != nil {
			result = ToolResult{OK: false, Error: &ToolError{Code: "TOOL_EXECUTE_ERROR", Message: fmt.Sprintf("panic: %v", p)}}
		}
	}()

	res, err := handler(ctx, args)
	if err != nil {
		return ToolResult{OK: false, Error: &ToolError{Code: "TOOL_EXECUTE_ERROR", Message: err.Error()}}
	}
	return res
}

func outcomeLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
