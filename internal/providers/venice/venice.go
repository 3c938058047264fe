// Package venice provides a Venice AI API provider for the slashbot agent
// system.
//
// Venice AI is a privacy-focused LLM provider offering both fully private
// models (no logging) and anonymized access to models from other providers
// via their proxy. The provider uses an OpenAI-compatible API, making
// integration straightforward.
//
// Key differences from direct OpenAI:
//   - Base URL: https://api.venice.ai/api/v1
//   - Privacy modes: "private" (no logging) or "anonymized" (via Venice proxy)
//   - Access to privacy-focused open source models (Llama, DeepSeek, Qwen)
//   - Anonymized access to Claude and GPT models
package venice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/slashbot/slashbot/internal/providers"
)

// ProviderID is the provider id used in AuthProfile/ProviderDefinition.
const ProviderID = "venice"

const (
	// BaseURL is the Venice AI API endpoint.
	BaseURL = "https://api.venice.ai/api/v1"

	// DefaultModelID is the model used when a request doesn't name one.
	DefaultModelID = "llama-3.3-70b"
)

// ModelCatalogEntry describes a Venice model's capabilities.
type ModelCatalogEntry struct {
	ID            string
	Name          string
	Reasoning     bool
	Input         []string
	ContextWindow int
	MaxTokens     int
	Privacy       string // "private" (no logging) or "anonymized" (via Venice proxy)
}

// Catalog contains the known Venice models, used both to populate
// Definition() and as a fallback when live discovery fails.
var Catalog = []ModelCatalogEntry{
	{ID: "llama-3.3-70b", Name: "Llama 3.3 70B", Input: []string{"text"}, ContextWindow: 131072, MaxTokens: 8192, Privacy: "private"},
	{ID: "llama-3.2-3b", Name: "Llama 3.2 3B", Input: []string{"text"}, ContextWindow: 131072, MaxTokens: 8192, Privacy: "private"},
	{ID: "qwen3-235b-a22b-thinking-2507", Name: "Qwen3 235B Thinking", Reasoning: true, Input: []string{"text"}, ContextWindow: 131072, MaxTokens: 8192, Privacy: "private"},
	{ID: "deepseek-v3.2", Name: "DeepSeek V3.2", Reasoning: true, Input: []string{"text"}, ContextWindow: 163840, MaxTokens: 8192, Privacy: "private"},
	{ID: "claude-opus-45", Name: "Claude Opus 4.5 (via Venice)", Reasoning: true, Input: []string{"text", "image"}, ContextWindow: 202752, MaxTokens: 8192, Privacy: "anonymized"},
	{ID: "openai-gpt-52", Name: "GPT-5.2 (via Venice)", Reasoning: true, Input: []string{"text"}, ContextWindow: 262144, MaxTokens: 8192, Privacy: "anonymized"},
}

// Definition returns the builtin Venice provider definition.
func Definition() providers.Definition {
	defs := make([]providers.ModelDefinition, 0, len(Catalog))
	for i, entry := range Catalog {
		defs = append(defs, providers.ModelDefinition{
			ID:            entry.ID,
			DisplayName:   entry.Name,
			ContextWindow: entry.ContextWindow,
			Priority:      i,
			Capabilities:  capabilitiesFor(entry),
		})
	}

	return providers.Definition{
		ID:                 ProviderID,
		PluginID:           "builtin",
		DisplayName:        "Venice AI",
		Models:             defs,
		PreferredAuthOrder: []string{"api_key"},
		NewFactory:         NewFactory,
	}
}

func capabilitiesFor(entry ModelCatalogEntry) []providers.ModelCapability {
	caps := []providers.ModelCapability{providers.CapabilityTools}
	if entry.Reasoning {
		caps = append(caps, providers.CapabilityReasoning)
	}
	for _, in := range entry.Input {
		if in == "image" {
			caps = append(caps, providers.CapabilityVision)
			break
		}
	}
	return caps
}

// Config holds configuration for the Venice provider's underlying client.
type Config struct {
	APIKey       string
	DefaultModel string
	BaseURL      string
	MaxRetries   int
	RetryDelay   time.Duration
}

// Client wraps Venice's OpenAI-compatible API with retry on transient errors.
type Client struct {
	baseURL      string
	openaiClient *openai.Client
	defaultModel string
	maxRetries   int
	retryDelay   time.Duration
}

// NewClient builds a Venice client from an API key using default settings.
func NewClient(apiKey string) *Client {
	return NewClientWithConfig(Config{APIKey: apiKey})
}

// NewClientWithConfig builds a Venice client with explicit settings.
func NewClientWithConfig(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = BaseURL
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = DefaultModelID
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}

	c := &Client{
		baseURL:      cfg.BaseURL,
		defaultModel: cfg.DefaultModel,
		maxRetries:   cfg.MaxRetries,
		retryDelay:   cfg.RetryDelay,
	}

	if cfg.APIKey != "" {
		clientConfig := openai.DefaultConfig(cfg.APIKey)
		clientConfig.BaseURL = cfg.BaseURL
		c.openaiClient = openai.NewClientWithConfig(clientConfig)
	}

	return c
}

// Complete issues a single non-streaming completion request, retrying
// transient failures with linear backoff.
func (c *Client) Complete(ctx context.Context, req providers.CompletionRequest) (providers.CompletionResult, error) {
	if c.openaiClient == nil {
		return providers.CompletionResult{}, errors.New("venice: API key not configured")
	}

	model := req.ModelID
	if model == "" {
		model = c.defaultModel
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		role := openai.ChatMessageRoleUser
		if m.Role == "assistant" {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	chatReq := openai.ChatCompletionRequest{Model: model, Messages: messages}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}

	var resp openai.ChatCompletionResponse
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return providers.CompletionResult{}, ctx.Err()
			case <-time.After(c.retryDelay * time.Duration(attempt)):
			}
		}

		resp, lastErr = c.openaiClient.CreateChatCompletion(ctx, chatReq)
		if lastErr == nil {
			break
		}
		if !isRetryableError(lastErr) {
			return providers.CompletionResult{}, fmt.Errorf("venice: %w", lastErr)
		}
	}
	if lastErr != nil {
		return providers.CompletionResult{}, fmt.Errorf("venice: max retries exceeded: %w", lastErr)
	}
	if len(resp.Choices) == 0 {
		return providers.CompletionResult{}, fmt.Errorf("venice: no choices returned")
	}

	return providers.CompletionResult{
		Content:    resp.Choices[0].Message.Content,
		StopReason: string(resp.Choices[0].FinishReason),
	}, nil
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	errMsg := err.Error()
	retryable := []string{"rate limit", "429", "500", "502", "503", "504", "timeout", "deadline exceeded"}
	for _, s := range retryable {
		if strings.Contains(errMsg, s) {
			return true
		}
	}
	return false
}

// NewFactory returns a providers.Factory backed by a Venice Client.
// auth must be an API key string.
func NewFactory() providers.Factory {
	return func(ctx context.Context, req providers.CompletionRequest, auth any) (providers.CompletionResult, error) {
		apiKey, ok := auth.(string)
		if !ok || apiKey == "" {
			return providers.CompletionResult{}, fmt.Errorf("venice: missing credential")
		}
		client := NewClient(apiKey)
		return client.Complete(ctx, req)
	}
}

// DiscoverModels fetches the live Venice model list, falling back to
// Catalog when the API key is empty or the request fails.
func DiscoverModels(ctx context.Context, apiKey string) ([]ModelCatalogEntry, error) {
	if apiKey == "" {
		return Catalog, nil
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, BaseURL+"/models", nil)
	if err != nil {
		return Catalog, nil
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return Catalog, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Catalog, nil
	}

	var result struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Catalog, nil
	}
	if len(result.Data) == 0 {
		return Catalog, nil
	}

	byID := make(map[string]ModelCatalogEntry, len(Catalog))
	for _, entry := range Catalog {
		byID[entry.ID] = entry
	}

	models := make([]ModelCatalogEntry, 0, len(result.Data))
	for _, m := range result.Data {
		if entry, ok := byID[m.ID]; ok {
			models = append(models, entry)
			continue
		}
		models = append(models, ModelCatalogEntry{ID: m.ID, Name: m.ID, Input: []string{"text"}, ContextWindow: 32000, MaxTokens: 4096, Privacy: "private"})
	}
	return models, nil
}

// IsPrivateModel reports whether a catalog model runs fully private
// (no logging) rather than anonymized through Venice's proxy.
func IsPrivateModel(modelID string) bool {
	for _, entry := range Catalog {
		if entry.ID == modelID {
			return entry.Privacy == "private"
		}
	}
	return false
}
