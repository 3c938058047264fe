// Package openai registers the builtin OpenAI ProviderDefinition.
package openai

import (
	"context"
	"fmt"

	openaisdk "github.com/sashabaranov/go-openai"

	"github.com/slashbot/slashbot/internal/providers"
)

// ProviderID is the provider id used in AuthProfile/ProviderDefinition.
const ProviderID = "openai"

// Definition returns the builtin OpenAI provider definition.
func Definition() providers.Definition {
	return providers.Definition{
		ID:          ProviderID,
		PluginID:    "builtin",
		DisplayName: "OpenAI",
		Models: []providers.ModelDefinition{
			{ID: "gpt-4o", DisplayName: "GPT-4o", ContextWindow: 128000, Capabilities: []providers.ModelCapability{providers.CapabilityTools, providers.CapabilityVision}},
			{ID: "gpt-4o-mini", DisplayName: "GPT-4o mini", ContextWindow: 128000, Priority: 1, Capabilities: []providers.ModelCapability{providers.CapabilityTools}},
			{ID: "o3-mini", DisplayName: "o3-mini", ContextWindow: 200000, Priority: 2, Capabilities: []providers.ModelCapability{providers.CapabilityReasoning}},
		},
		PreferredAuthOrder: []string{"api_key"},
		NewFactory:         NewFactory,
	}
}

// NewFactory returns a providers.Factory backed by the go-openai client.
// auth must be an API key string.
func NewFactory() providers.Factory {
	return func(ctx context.Context, req providers.CompletionRequest, auth any) (providers.CompletionResult, error) {
		apiKey, ok := auth.(string)
		if !ok || apiKey == "" {
			return providers.CompletionResult{}, fmt.Errorf("openai: missing credential")
		}

		client := openaisdk.NewClient(apiKey)

		messages := make([]openaisdk.ChatCompletionMessage, 0, len(req.Messages)+1)
		if req.System != "" {
			messages = append(messages, openaisdk.ChatCompletionMessage{Role: openaisdk.ChatMessageRoleSystem, Content: req.System})
		}
		for _, m := range req.Messages {
			role := openaisdk.ChatMessageRoleUser
			if m.Role == "assistant" {
				role = openaisdk.ChatMessageRoleAssistant
			}
			messages = append(messages, openaisdk.ChatCompletionMessage{Role: role, Content: m.Content})
		}

		resp, err := client.CreateChatCompletion(ctx, openaisdk.ChatCompletionRequest{
			Model:     req.ModelID,
			Messages:  messages,
			MaxTokens: req.MaxTokens,
		})
		if err != nil {
			return providers.CompletionResult{}, fmt.Errorf("openai completion: %w", err)
		}
		if len(resp.Choices) == 0 {
			return providers.CompletionResult{}, fmt.Errorf("openai completion: no choices returned")
		}

		return providers.CompletionResult{
			Content:    resp.Choices[0].Message.Content,
			StopReason: string(resp.Choices[0].FinishReason),
		}, nil
	}
}
