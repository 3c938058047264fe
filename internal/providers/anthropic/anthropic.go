// Package anthropic registers the builtin Anthropic ProviderDefinition.
package anthropic

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/slashbot/slashbot/internal/providers"
)

// ProviderID is the provider id used in AuthProfile/ProviderDefinition.
const ProviderID = "anthropic"

// Definition returns the builtin Anthropic provider definition, with a
// Factory that issues completions through the official Go SDK.
func Definition() providers.Definition {
	return providers.Definition{
		ID:          ProviderID,
		PluginID:    "builtin",
		DisplayName: "Anthropic",
		Models: []providers.ModelDefinition{
			{ID: "claude-opus-4-20250514", DisplayName: "Claude Opus 4", ContextWindow: 200000, Capabilities: []providers.ModelCapability{providers.CapabilityTools, providers.CapabilityVision, providers.CapabilityReasoning}},
			{ID: "claude-sonnet-4-20250514", DisplayName: "Claude Sonnet 4", ContextWindow: 200000, Priority: 1, Capabilities: []providers.ModelCapability{providers.CapabilityTools, providers.CapabilityVision}},
			{ID: "claude-3-5-haiku-20241022", DisplayName: "Claude 3.5 Haiku", ContextWindow: 200000, Priority: 2, Capabilities: []providers.ModelCapability{providers.CapabilityTools}},
		},
		PreferredAuthOrder: []string{"oauth_pkce", "api_key", "setup_token", "claude_code_import"},
		NewFactory:         NewFactory,
	}
}

// NewFactory returns a providers.Factory backed by the Anthropic SDK.
// auth must be an API key string or an oauth bearer token string.
func NewFactory() providers.Factory {
	return func(ctx context.Context, req providers.CompletionRequest, auth any) (providers.CompletionResult, error) {
		token, ok := auth.(string)
		if !ok || token == "" {
			return providers.CompletionResult{}, fmt.Errorf("anthropic: missing credential")
		}

		client := anthropic.NewClient(option.WithAPIKey(token))

		messages := make([]anthropic.MessageParam, 0, len(req.Messages))
		for _, m := range req.Messages {
			switch m.Role {
			case "assistant":
				messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
			default:
				messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
			}
		}

		maxTokens := int64(req.MaxTokens)
		if maxTokens <= 0 {
			maxTokens = 4096
		}

		params := anthropic.MessageNewParams{
			Model:     anthropic.Model(req.ModelID),
			MaxTokens: maxTokens,
			Messages:  messages,
		}
		if req.System != "" {
			params.System = []anthropic.TextBlockParam{{Text: req.System}}
		}

		resp, err := client.Messages.New(ctx, params)
		if err != nil {
			return providers.CompletionResult{}, fmt.Errorf("anthropic completion: %w", err)
		}

		var content string
		for _, block := range resp.Content {
			if block.Type == "text" {
				content += block.Text
			}
		}

		return providers.CompletionResult{
			Content:    content,
			StopReason: string(resp.StopReason),
		}, nil
	}
}
