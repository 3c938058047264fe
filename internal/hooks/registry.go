package hooks

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Dispatcher owns hook registrations and performs deterministic,
// timeout-isolated dispatch. Within a single Dispatch call handlers run
// strictly sequentially; across concurrent Dispatch calls for the same
// event, handlers may be invoked in parallel (spec.md §5).
type Dispatcher struct {
	mu       sync.RWMutex
	byKey    map[string][]*Registration // "domain:event" -> registrations, kept sorted
	byID     map[string]*Registration
	sequence uint64

	defaultTimeout time.Duration
	logger         *slog.Logger
	bus            EventPublisher
}

// EventPublisher is the subset of the event bus the dispatcher needs for
// observability (spec.md §4.2 "Observability"). Any bus satisfying this
// may be wired in; nil disables emission.
type EventPublisher interface {
	Publish(eventType string, payload any)
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithDefaultTimeout overrides the fallback per-hook timeout used when a
// registration does not specify one.
func WithDefaultTimeout(d time.Duration) Option {
	return func(disp *Dispatcher) { disp.defaultTimeout = d }
}

// WithEventBus wires an event bus for dispatcher observability events.
func WithEventBus(bus EventPublisher) Option {
	return func(disp *Dispatcher) { disp.bus = bus }
}

// NewDispatcher creates a hook dispatcher. logger may be nil, in which
// case slog.Default() is used.
func NewDispatcher(logger *slog.Logger, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	disp := &Dispatcher{
		byKey:          make(map[string][]*Registration),
		byID:           make(map[string]*Registration),
		defaultTimeout: 5 * time.Second,
		logger:         logger.With("component", "hooks"),
	}
	for _, opt := range opts {
		opt(disp)
	}
	return disp
}

// RegisterInput describes a new hook registration.
type RegisterInput struct {
	PluginID    string
	Domain      Domain
	Event       string
	Priority    int // 0 means "use DefaultPriority"
	TimeoutMs   int
	Handler     Handler
	Description string
}

// Register adds a handler for (domain, event). Returns the registration
// ID, usable with Unregister. Handlers are kept sorted by ascending
// priority, ties broken by ascending registration order (spec.md §4.2).
func (d *Dispatcher) Register(in RegisterInput) (string, error) {
	if in.Handler == nil {
		return "", fmt.Errorf("hooks: handler is required")
	}
	if in.Event == "" {
		return "", fmt.Errorf("hooks: event is required")
	}
	priority := in.Priority
	if priority == 0 {
		priority = DefaultPriority
	}

	reg := &Registration{
		ID:          uuid.New().String(),
		PluginID:    in.PluginID,
		Domain:      in.Domain,
		Event:       in.Event,
		Priority:    priority,
		TimeoutMs:   in.TimeoutMs,
		Handler:     in.Handler,
		Description: in.Description,
	}

	key := eventKey(in.Domain, in.Event)

	d.mu.Lock()
	d.sequence++
	reg.order = d.sequence
	d.byKey[key] = append(d.byKey[key], reg)
	sortRegistrations(d.byKey[key])
	d.byID[reg.ID] = reg
	d.mu.Unlock()

	d.emit("hook:registered", map[string]any{
		"id": reg.ID, "pluginId": reg.PluginID, "domain": reg.Domain,
		"event": reg.Event, "priority": reg.Priority,
	})

	return reg.ID, nil
}

func sortRegistrations(regs []*Registration) {
	sort.SliceStable(regs, func(i, j int) bool {
		if regs[i].Priority != regs[j].Priority {
			return regs[i].Priority < regs[j].Priority
		}
		return regs[i].order < regs[j].order
	})
}

// Unregister removes a handler by its registration ID. Returns false if
// the ID was unknown.
func (d *Dispatcher) Unregister(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	reg, ok := d.byID[id]
	if !ok {
		return false
	}
	delete(d.byID, id)

	key := eventKey(reg.Domain, reg.Event)
	kept := d.byKey[key][:0]
	for _, r := range d.byKey[key] {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	d.byKey[key] = kept
	return true
}

// Dispatch runs every handler registered for (domain, event) in
// deterministic order against payload, merging each handler's returned
// partial payload into the working copy Object.assign-style. Dispatch
// never returns an error for handler failures — those land in
// Report.Failures — only for a malformed call.
func (d *Dispatcher) Dispatch(ctx context.Context, domain Domain, event string, payload Payload) Report {
	key := eventKey(domain, event)

	d.mu.RLock()
	regs := make([]*Registration, len(d.byKey[key]))
	copy(regs, d.byKey[key])
	d.mu.RUnlock()

	initial := payload.Clone()
	working := payload.Clone()
	report := Report{InitialPayload: initial}

	if len(regs) == 0 {
		report.FinalPayload = working
		return report
	}

	d.emit("hook:dispatch_start", cappedPayload(map[string]any{
		"domain": domain, "event": event, "handlerCount": len(regs),
	}))

	for _, reg := range regs {
		start := time.Now()
		d.emit("hook:invoke_start", cappedPayload(map[string]any{
			"id": reg.ID, "pluginId": reg.PluginID, "domain": domain, "event": event,
		}))

		patch, failure := d.invoke(ctx, reg, domain, event, working.Clone())
		elapsed := time.Since(start)

		if failure != nil {
			failure.ElapsedMs = elapsed.Milliseconds()
			report.Failures = append(report.Failures, *failure)
			d.logger.Warn("hook invocation failed",
				"hook_id", reg.ID, "plugin_id", reg.PluginID,
				"domain", domain, "event", event,
				"timed_out", failure.TimedOut, "error", failure.Message)
			d.emit("hook:invoke_failure", cappedPayload(map[string]any{
				"id": reg.ID, "pluginId": reg.PluginID, "domain": domain,
				"event": event, "elapsedMs": failure.ElapsedMs, "timedOut": failure.TimedOut,
			}))
			continue
		}

		if patch != nil {
			working = working.Merge(patch)
		}
		d.emit("hook:invoke_success", cappedPayload(map[string]any{
			"id": reg.ID, "pluginId": reg.PluginID, "domain": domain,
			"event": event, "elapsedMs": elapsed.Milliseconds(),
		}))
	}

	report.FinalPayload = working

	d.emit("hook:dispatch_end", cappedPayload(map[string]any{
		"domain": domain, "event": event, "failures": len(report.Failures),
	}))

	return report
}

// invoke runs a single handler under its configured timeout, isolating
// panics and deadline exceeded into a Failure record.
func (d *Dispatcher) invoke(ctx context.Context, reg *Registration, domain Domain, event string, payload Payload) (patch Payload, failure *Failure) {
	timeout := d.defaultTimeout
	if reg.TimeoutMs > 0 {
		timeout = time.Duration(reg.TimeoutMs) * time.Millisecond
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	callCtx = withMeta(callCtx, DispatchMeta{Domain: domain, Event: event, PluginID: reg.PluginID, HookID: reg.ID})

	type result struct {
		patch Payload
		err   error
	}
	done := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("hook panic: %v", r)}
			}
		}()
		p, err := reg.Handler(callCtx, payload)
		done <- result{patch: p, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, &Failure{
				PluginID: reg.PluginID, HookID: reg.ID, Domain: domain, Event: event,
				Message: res.err.Error(),
			}
		}
		return res.patch, nil
	case <-callCtx.Done():
		return nil, &Failure{
			PluginID: reg.PluginID, HookID: reg.ID, Domain: domain, Event: event,
			Message: callCtx.Err().Error(), TimedOut: true,
		}
	}
}

func (d *Dispatcher) emit(eventType string, payload any) {
	if d.bus == nil {
		return
	}
	defer func() { recover() }() // emission failures are swallowed, spec.md §4.2
	d.bus.Publish(eventType, payload)
}

// cappedPayload applies the size caps from spec.md §4.2 (depth 4, 40
// items per level, 600 chars per string) before a payload is handed to
// the event bus for observability.
func cappedPayload(v map[string]any) map[string]any {
	return capValue(v, 0).(map[string]any)
}

const (
	capMaxDepth    = 4
	capMaxItems    = 40
	capMaxStrChars = 600
)

func capValue(v any, depth int) any {
	if depth >= capMaxDepth {
		return "[depth limit]"
	}
	switch val := v.(type) {
	case string:
		if len(val) > capMaxStrChars {
			return val[:capMaxStrChars] + "...[truncated]"
		}
		return val
	case map[string]any:
		out := make(map[string]any, len(val))
		count := 0
		for k, item := range val {
			if count >= capMaxItems {
				out["..."] = fmt.Sprintf("%d more keys", len(val)-count)
				break
			}
			out[k] = capValue(item, depth+1)
			count++
		}
		return out
	case []any:
		n := len(val)
		if n > capMaxItems {
			n = capMaxItems
		}
		out := make([]any, 0, n)
		for i := 0; i < n; i++ {
			out = append(out, capValue(val[i], depth+1))
		}
		return out
	default:
		return val
	}
}

// ListRegistrations returns a snapshot of handlers registered for
// (domain, event), in dispatch order.
func (d *Dispatcher) ListRegistrations(domain Domain, event string) []*Registration {
	d.mu.RLock()
	defer d.mu.RUnlock()

	regs := d.byKey[eventKey(domain, event)]
	out := make([]*Registration, len(regs))
	copy(out, regs)
	return out
}

// registrationCount reports how many handlers are live across all events;
// used by kernel health/diagnostics.
func (d *Dispatcher) registrationCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byID)
}
