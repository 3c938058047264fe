package contextpipeline

import (
	"context"
	"errors"
	"testing"
)

func TestWithOverflowRecoverySucceedsOnThirdAttempt(t *testing.T) {
	calls := 0
	var strategies []string

	cfg := Config{ContextLimit: 10000, ReserveTokens: 1000, ProtectedRecentMessages: 3}
	messages := []Message{{Role: RoleSystem, Content: "sys"}, {Role: RoleUser, Content: "hi"}}

	exec := func(_ context.Context, _ []Message) (any, error) {
		calls++
		if calls <= 2 {
			return nil, errors.New("maximum context length exceeded")
		}
		return "ok", nil
	}

	result, err := WithOverflowRecovery(context.Background(), messages, cfg, exec, func(attempt int, strategy string) {
		strategies = append(strategies, strategy)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "ok" {
		t.Fatalf("expected ok result, got %v", result)
	}
	if len(strategies) != 2 || strategies[0] != "aggressive-trim" || strategies[1] != "truncate-oversized" {
		t.Fatalf("unexpected strategy sequence: %v", strategies)
	}
}

func TestWithOverflowRecoveryExhausted(t *testing.T) {
	cfg := Config{ContextLimit: 10000, ReserveTokens: 1000}
	messages := []Message{{Role: RoleUser, Content: "hi"}}

	exec := func(_ context.Context, _ []Message) (any, error) {
		return nil, errors.New("request too large")
	}

	_, err := WithOverflowRecovery(context.Background(), messages, cfg, exec, nil)
	if !errors.Is(err, ErrOverflowRecoveryExhausted) {
		t.Fatalf("expected ErrOverflowRecoveryExhausted, got %v", err)
	}
}

func TestWithOverflowRecoveryPropagatesNonOverflowError(t *testing.T) {
	cfg := Config{ContextLimit: 10000, ReserveTokens: 1000}
	messages := []Message{{Role: RoleUser, Content: "hi"}}
	wantErr := errors.New("unrelated failure")

	exec := func(_ context.Context, _ []Message) (any, error) {
		return nil, wantErr
	}

	_, err := WithOverflowRecovery(context.Background(), messages, cfg, exec, nil)
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected original error to propagate, got %v", err)
	}
}

func TestTruncateToolResultCutsAtLastNewline(t *testing.T) {
	cfg := Config{ContextLimit: 100, ToolResultMaxContextShare: 0.5, ToolResultHardMax: 1000, ToolResultMinKeep: 10}
	long := ""
	for i := 0; i < 50; i++ {
		long += "line-of-text\n"
	}

	out := TruncateToolResult(long, cfg)
	if len(out) >= len(long) {
		t.Fatalf("expected truncation to shrink content")
	}
	if !contains(out, "truncated") {
		t.Fatalf("expected truncation marker, got %q", out)
	}
}

func contains(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}
