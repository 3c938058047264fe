package venice

import (
	"context"
	"testing"
	"time"

	"github.com/slashbot/slashbot/internal/providers"
)

func TestNewClientWithConfig(t *testing.T) {
	tests := []struct {
		name        string
		cfg         Config
		wantBaseURL string
		wantModel   string
		wantRetries int
		wantDelay   time.Duration
	}{
		{
			name:        "default values",
			cfg:         Config{APIKey: "test-key"},
			wantBaseURL: BaseURL,
			wantModel:   DefaultModelID,
			wantRetries: 3,
			wantDelay:   time.Second,
		},
		{
			name: "custom values",
			cfg: Config{
				APIKey:       "test-key",
				BaseURL:      "https://custom.api.com/v1",
				DefaultModel: "custom-model",
				MaxRetries:   5,
				RetryDelay:   2 * time.Second,
			},
			wantBaseURL: "https://custom.api.com/v1",
			wantModel:   "custom-model",
			wantRetries: 5,
			wantDelay:   2 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewClientWithConfig(tt.cfg)
			if client.baseURL != tt.wantBaseURL {
				t.Errorf("baseURL = %q, want %q", client.baseURL, tt.wantBaseURL)
			}
			if client.defaultModel != tt.wantModel {
				t.Errorf("defaultModel = %q, want %q", client.defaultModel, tt.wantModel)
			}
			if client.maxRetries != tt.wantRetries {
				t.Errorf("maxRetries = %d, want %d", client.maxRetries, tt.wantRetries)
			}
			if client.retryDelay != tt.wantDelay {
				t.Errorf("retryDelay = %v, want %v", client.retryDelay, tt.wantDelay)
			}
		})
	}
}

func TestDefinitionListsCatalogModels(t *testing.T) {
	def := Definition()
	if def.ID != ProviderID {
		t.Errorf("ID = %q, want %q", def.ID, ProviderID)
	}
	if len(def.Models) != len(Catalog) {
		t.Errorf("Models len = %d, want %d", len(def.Models), len(Catalog))
	}

	var foundClaude bool
	for _, m := range def.Models {
		if m.ID == "claude-opus-45" {
			foundClaude = true
			hasVision := false
			for _, c := range m.Capabilities {
				if c == providers.CapabilityVision {
					hasVision = true
				}
			}
			if !hasVision {
				t.Error("claude-opus-45 should advertise vision capability")
			}
		}
	}
	if !foundClaude {
		t.Error("claude-opus-45 not found in Definition().Models")
	}
}

func TestCatalogEntriesAreWellFormed(t *testing.T) {
	if len(Catalog) == 0 {
		t.Fatal("Catalog is empty")
	}
	for _, entry := range Catalog {
		if entry.ID == "" {
			t.Error("catalog entry has empty ID")
		}
		if len(entry.Input) == 0 {
			t.Errorf("catalog entry %q has no input types", entry.ID)
		}
		if entry.ContextWindow <= 0 {
			t.Errorf("catalog entry %q has invalid ContextWindow: %d", entry.ID, entry.ContextWindow)
		}
		if entry.Privacy != "private" && entry.Privacy != "anonymized" {
			t.Errorf("catalog entry %q has invalid Privacy: %q", entry.ID, entry.Privacy)
		}
	}
}

func TestIsPrivateModel(t *testing.T) {
	tests := []struct {
		modelID     string
		wantPrivate bool
	}{
		{"llama-3.3-70b", true},
		{"deepseek-v3.2", true},
		{"claude-opus-45", false},
		{"openai-gpt-52", false},
		{"nonexistent", false},
	}

	for _, tt := range tests {
		t.Run(tt.modelID, func(t *testing.T) {
			if got := IsPrivateModel(tt.modelID); got != tt.wantPrivate {
				t.Errorf("IsPrivateModel(%q) = %v, want %v", tt.modelID, got, tt.wantPrivate)
			}
		})
	}
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name      string
		errMsg    string
		wantRetry bool
	}{
		{"rate limit", "rate limit exceeded", true},
		{"429 error", "error: 429 too many requests", true},
		{"500 error", "internal server error 500", true},
		{"timeout", "request timeout", true},
		{"deadline", "context deadline exceeded", true},
		{"auth error", "invalid API key", false},
		{"not found", "model not found", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &mockError{msg: tt.errMsg}
			if got := isRetryableError(err); got != tt.wantRetry {
				t.Errorf("isRetryableError(%q) = %v, want %v", tt.errMsg, got, tt.wantRetry)
			}
		})
	}
}

func TestDiscoverModelsFallsBackToCatalogWithoutAPIKey(t *testing.T) {
	models, err := DiscoverModels(context.Background(), "")
	if err != nil {
		t.Fatalf("DiscoverModels() error = %v", err)
	}
	if len(models) != len(Catalog) {
		t.Errorf("DiscoverModels() returned %d models, want %d", len(models), len(Catalog))
	}
}

func TestCompleteWithoutAPIKeyFails(t *testing.T) {
	client := NewClientWithConfig(Config{})
	_, err := client.Complete(context.Background(), providers.CompletionRequest{
		ModelID:  "llama-3.3-70b",
		Messages: []providers.CompletionMessage{{Role: "user", Content: "Hello"}},
	})
	if err == nil {
		t.Error("Complete() should fail without API key")
	}
}

func TestNewFactoryRejectsMissingCredential(t *testing.T) {
	factory := NewFactory()
	_, err := factory(context.Background(), providers.CompletionRequest{ModelID: "llama-3.3-70b"}, nil)
	if err == nil {
		t.Error("factory should reject a nil credential")
	}
}

type mockError struct{ msg string }

func (e *mockError) Error() string { return e.msg }
