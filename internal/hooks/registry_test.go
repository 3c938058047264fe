package hooks

import (
	"context"
	"errors"
	"testing"
	"time"
)

func countHandler(inc int) Handler {
	return func(_ context.Context, payload Payload) (Payload, error) {
		count, _ := payload["count"].(int)
		return Payload{"count": count + inc}, nil
	}
}

func TestDispatchOrderingAndMutationChain(t *testing.T) {
	d := NewDispatcher(nil)

	if _, err := d.Register(RegisterInput{Domain: DomainKernel, Event: "input", Priority: 10, Handler: countHandler(1)}); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Register(RegisterInput{Domain: DomainKernel, Event: "input", Priority: 10, Handler: countHandler(2)}); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Register(RegisterInput{Domain: DomainKernel, Event: "input", Priority: 20, Handler: countHandler(10)}); err != nil {
		t.Fatal(err)
	}

	report := d.Dispatch(context.Background(), DomainKernel, "input", Payload{"count": 0})

	if len(report.Failures) != 0 {
		t.Fatalf("expected no failures, got %+v", report.Failures)
	}
	if got := report.FinalPayload["count"]; got != 13 {
		t.Fatalf("expected count=13, got %v", got)
	}
}

func TestDispatchIsolatesFailures(t *testing.T) {
	d := NewDispatcher(nil)

	d.Register(RegisterInput{Domain: DomainCustom, Event: "e", Priority: 10, Handler: func(_ context.Context, _ Payload) (Payload, error) {
		return nil, errors.New("boom")
	}})
	d.Register(RegisterInput{Domain: DomainCustom, Event: "e", Priority: 20, Handler: func(_ context.Context, payload Payload) (Payload, error) {
		return Payload{"ok": true}, nil
	}})

	report := d.Dispatch(context.Background(), DomainCustom, "e", Payload{})

	if len(report.Failures) != 1 {
		t.Fatalf("expected exactly one failure, got %d", len(report.Failures))
	}
	if report.FinalPayload["ok"] != true {
		t.Fatalf("expected surviving handler's mutation to land, got %+v", report.FinalPayload)
	}
}

func TestDispatchHookTimeout(t *testing.T) {
	d := NewDispatcher(nil)

	d.Register(RegisterInput{
		Domain: DomainCustom, Event: "slow", TimeoutMs: 20,
		Handler: func(ctx context.Context, _ Payload) (Payload, error) {
			select {
			case <-time.After(2 * time.Second):
				return Payload{"late": true}, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	})

	start := time.Now()
	report := d.Dispatch(context.Background(), DomainCustom, "slow", Payload{})
	elapsed := time.Since(start)

	if len(report.Failures) != 1 || !report.Failures[0].TimedOut {
		t.Fatalf("expected one timed-out failure, got %+v", report.Failures)
	}
	if elapsed < 20*time.Millisecond || elapsed > 500*time.Millisecond {
		t.Fatalf("expected elapsed within [20ms, 500ms] slack, got %v", elapsed)
	}
	if _, ok := report.FinalPayload["late"]; ok {
		t.Fatalf("abandoned handler's result must not apply")
	}
}

func TestDispatchInPlaceMutationDoesNotLeakBetweenHandlers(t *testing.T) {
	d := NewDispatcher(nil)

	d.Register(RegisterInput{Domain: DomainCustom, Event: "e", Priority: 10, Handler: func(_ context.Context, payload Payload) (Payload, error) {
		payload["mutated"] = true // in-place write to the handler's own copy
		return nil, nil
	}})
	d.Register(RegisterInput{Domain: DomainCustom, Event: "e", Priority: 20, Handler: func(_ context.Context, payload Payload) (Payload, error) {
		if _, ok := payload["mutated"]; ok {
			t.Fatal("later handler saw an earlier handler's in-place mutation")
		}
		return nil, nil
	}})

	report := d.Dispatch(context.Background(), DomainCustom, "e", Payload{})
	if _, ok := report.FinalPayload["mutated"]; ok {
		t.Fatal("in-place mutation without a returned patch must not reach the final payload")
	}
}

func TestUnregisterStopsFutureDispatch(t *testing.T) {
	d := NewDispatcher(nil)
	id, _ := d.Register(RegisterInput{Domain: DomainCustom, Event: "e", Handler: countHandler(1)})

	if !d.Unregister(id) {
		t.Fatal("expected unregister to succeed")
	}
	if d.Unregister(id) {
		t.Fatal("expected second unregister to fail")
	}

	report := d.Dispatch(context.Background(), DomainCustom, "e", Payload{"count": 0})
	if report.FinalPayload["count"] != 0 {
		t.Fatalf("expected no handlers to run, got %+v", report.FinalPayload)
	}
}

func TestDomainsAreIndependentNamespaces(t *testing.T) {
	d := NewDispatcher(nil)
	d.Register(RegisterInput{Domain: DomainKernel, Event: "startup", Handler: countHandler(1)})

	report := d.Dispatch(context.Background(), DomainLifecycle, "startup", Payload{"count": 0})
	if report.FinalPayload["count"] != 0 {
		t.Fatalf("expected kernel:startup handler not to fire for lifecycle:startup")
	}
}
