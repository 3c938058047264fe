// Package hooks implements the priority-ordered, timeout-isolated,
// payload-mutating middleware pipeline used for kernel, lifecycle, and
// custom events.
package hooks

import (
	"context"
	"fmt"
)

// Domain groups related events. The dispatcher treats domains as
// independent namespaces: two hooks in different domains never compete
// for the same dispatch even if their Event strings collide.
type Domain string

const (
	DomainKernel    Domain = "kernel"
	DomainLifecycle Domain = "lifecycle"
	DomainCustom    Domain = "custom"
)

// Kernel domain events.
const (
	EventStartup  = "startup"
	EventShutdown = "shutdown"
)

// Lifecycle domain events.
const (
	EventSessionStart        = "session_start"
	EventSessionEnd          = "session_end"
	EventMessageReceived     = "message_received"
	EventMessageSending      = "message_sending"
	EventMessageSent         = "message_sent"
	EventBeforeToolCall      = "before_tool_call"
	EventAfterToolCall       = "after_tool_call"
	EventToolResultPersist   = "tool_result_persist"
	EventBeforeCommand       = "before_command"
	EventAfterCommand        = "after_command"
	EventBeforePromptAssemble = "before_prompt_assemble"
	EventAfterPromptAssemble  = "after_prompt_assemble"
	EventBeforeLLMCall       = "before_llm_call"
	EventAfterLLMCall        = "after_llm_call"
	EventCLIInit             = "cli_init"
	EventCLIExit             = "cli_exit"
)

// DefaultPriority is used when a registration does not specify one.
const DefaultPriority = 100

// Payload is the mutable, dynamic bag of values passed through a dispatch.
// It stands in for the TypeScript `Record<string, unknown>` the reference
// passes to handlers; callers type-assert fields they know about.
type Payload map[string]any

// Clone makes a shallow copy of the payload, matching the "shallow copy
// passed to each handler" rule in spec.md §4.2 — nested maps/slices are
// still shared, only the top-level map is independent.
func (p Payload) Clone() Payload {
	if p == nil {
		return Payload{}
	}
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Merge applies src on top of dst, Object.assign-style: top-level keys in
// src overwrite dst, no recursion into nested values.
func (p Payload) Merge(src Payload) Payload {
	out := p.Clone()
	for k, v := range src {
		out[k] = v
	}
	return out
}

// Handler processes one hook invocation. It may return a partial payload
// (only the fields it wants to change) or nil for a no-op. Returning an
// error is equivalent to a throw in the reference implementation. ctx
// carries the per-invocation timeout deadline and is cancelled the
// instant that deadline passes.
type Handler func(ctx context.Context, payload Payload) (Payload, error)

// dispatchKey is the context key under which dispatch metadata
// (domain/event/pluginID) is stashed for observability.
type dispatchMetaKey struct{}

// DispatchMeta describes the dispatch a handler is running under.
type DispatchMeta struct {
	Domain   Domain
	Event    string
	PluginID string
	HookID   string
}

// MetaFromContext returns the dispatch metadata for the running handler,
// if any.
func MetaFromContext(ctx context.Context) (DispatchMeta, bool) {
	m, ok := ctx.Value(dispatchMetaKey{}).(DispatchMeta)
	return m, ok
}

func withMeta(ctx context.Context, meta DispatchMeta) context.Context {
	return context.WithValue(ctx, dispatchMetaKey{}, meta)
}

// Registration describes one handler bound to a (domain, event) pair.
type Registration struct {
	ID          string
	PluginID    string
	Domain      Domain
	Event       string
	Priority    int
	TimeoutMs   int
	Handler     Handler
	Description string

	// order is the monotonically increasing registration sequence number,
	// used to break priority ties deterministically (spec.md §4.2).
	order uint64
}

// Failure records one hook invocation that threw or timed out. The
// working payload from a failed invocation is discarded; prior
// handlers' mutations stand (spec.md §4.2 "Failure isolation").
type Failure struct {
	PluginID  string `json:"pluginId"`
	HookID    string `json:"hookId"`
	Domain    Domain `json:"domain"`
	Event     string `json:"event"`
	ElapsedMs int64  `json:"elapsedMs"`
	Message   string `json:"message"`
	TimedOut  bool   `json:"timedOut"`
}

// Report is the result of one Dispatch call.
type Report struct {
	InitialPayload Payload
	FinalPayload   Payload
	Failures       []Failure
}

func eventKey(domain Domain, event string) string {
	return fmt.Sprintf("%s:%s", domain, event)
}
