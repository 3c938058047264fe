package contextpipeline

import (
	"strings"
	"testing"
)

func TestEstimateTokensCeilPlusOverhead(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected int
	}{
		{"empty", "", 4},
		{"short", "Hello", 6},       // ceil(5/4)=2, +4
		{"exact multiple", "12345678", 6}, // ceil(8/4)=2, +4
	}
	for _, tt := range tests {
		if got := EstimateTokens(tt.content); got != tt.expected {
			t.Errorf("%s: EstimateTokens() = %d, want %d", tt.name, got, tt.expected)
		}
	}
}

func TestPrepareFitTrimKeepsSystemAndTail(t *testing.T) {
	messages := []Message{{Role: RoleSystem, Content: strings.Repeat("S", 1000)}}
	for i := 0; i < 200; i++ {
		messages = append(messages, Message{Role: RoleUser, Content: strings.Repeat("U", 200)})
	}

	cfg := Config{
		ContextLimit:            10000,
		ReserveTokens:           2000,
		SoftTrimThreshold:       0.9,
		HardClearThreshold:      0.95,
		SoftTrimMinChars:        4000,
		SoftTrimKeepChars:       1000,
		ProtectedRecentMessages: 3,
	}

	out := Prepare(messages, cfg)

	hasSystem := false
	for _, m := range out {
		if m.Role == RoleSystem {
			hasSystem = true
		}
	}
	if !hasSystem {
		t.Fatalf("expected a system message to survive")
	}

	userCount := 0
	for _, m := range out {
		if m.Role == RoleUser {
			userCount++
		}
	}
	if userCount == 0 {
		t.Fatalf("expected at least one user message to survive")
	}
	if userCount >= 200 {
		t.Fatalf("expected earliest user messages to be dropped, got %d kept", userCount)
	}

	last := out[len(out)-1]
	if last.Role != RoleUser {
		t.Fatalf("expected the tail message to be the most recent user message")
	}

	if EstimateTotal(out) > cfg.Budget() {
		t.Fatalf("prepared messages exceed budget: %d > %d", EstimateTotal(out), cfg.Budget())
	}
}

func TestPruneProtectsRecentAssistantMessages(t *testing.T) {
	bigToolResult := strings.Repeat("{", 3000)
	messages := []Message{
		{Role: RoleSystem, Content: "sys"},
		{Role: RoleUser, Content: bigToolResult},
		{Role: RoleAssistant, Content: bigToolResult},
		{Role: RoleAssistant, Content: bigToolResult},
		{Role: RoleAssistant, Content: bigToolResult},
	}
	cfg := Config{
		ContextLimit:            4000,
		ReserveTokens:           0,
		SoftTrimThreshold:       0.01,
		HardClearThreshold:      0.02,
		SoftTrimMinChars:        10,
		SoftTrimKeepChars:       5,
		ProtectedRecentMessages: 3,
	}

	out := stagePrune(messages, cfg)

	for i := len(out) - 3; i < len(out); i++ {
		if out[i].Role != RoleAssistant {
			continue
		}
		if out[i].Content != bigToolResult {
			t.Fatalf("expected protected assistant message at index %d to be untouched", i)
		}
	}
}

func TestSanitizeDropsEmptyAndFoldsGoogleRoles(t *testing.T) {
	messages := []Message{
		{Role: RoleSystem, Content: "sys"},
		{Role: RoleUser, Content: ""},
		{Role: RoleUser, Content: "a"},
		{Role: RoleUser, Content: "b"},
		{Role: RoleAssistant, Content: "c"},
	}
	cfg := Config{ProviderID: "google"}
	out := stageSanitize(messages, cfg)

	if len(out) != 3 {
		t.Fatalf("expected 3 messages after drop+fold, got %d: %+v", len(out), out)
	}
	if out[1].Content != "a\n\nb" {
		t.Fatalf("expected folded user content, got %q", out[1].Content)
	}
}

func TestHistoryTurnLimitKeepsMostRecentTurns(t *testing.T) {
	messages := []Message{{Role: RoleSystem, Content: "sys"}}
	for i := 0; i < 5; i++ {
		messages = append(messages, Message{Role: RoleUser, Content: "u"})
		messages = append(messages, Message{Role: RoleAssistant, Content: "a"})
	}
	cfg := Config{MaxHistoryTurns: 2}
	out := stageHistoryTurnLimit(messages, cfg)

	userCount := 0
	for _, m := range out {
		if m.Role == RoleUser {
			userCount++
		}
	}
	if userCount != 2 {
		t.Fatalf("expected 2 user turns kept, got %d", userCount)
	}
	if out[0].Role != RoleSystem {
		t.Fatalf("expected system message preserved at head")
	}
}
