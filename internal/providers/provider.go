// Package providers defines the shared ProviderDefinition/ModelDefinition
// shapes the builtin provider packages (anthropic, openai, bedrock, venice)
// register into the kernel's provider registry (spec.md §3, §4.4).
package providers

import "context"

// ModelCapability names an optional model capability flag.
type ModelCapability string

const (
	CapabilityVision    ModelCapability = "vision"
	CapabilityTools     ModelCapability = "tools"
	CapabilityReasoning ModelCapability = "reasoning"
	CapabilityStreaming ModelCapability = "streaming"
)

// ModelDefinition describes one model a provider exposes.
type ModelDefinition struct {
	ID            string
	DisplayName   string
	ContextWindow int
	Priority      int
	Capabilities  []ModelCapability
}

// AuthHandler authenticates one request against a provider using a
// resolved auth.Profile's opaque data, returning request-ready credentials
// (e.g. an HTTP header set or client option). It is provider-specific, so
// it is left as an opaque function value here; concrete providers type
// their own handler signature and store it behind this name.
type AuthHandler func(ctx context.Context, profileData []byte) (any, error)

// CompletionRequest is the provider-agnostic shape a Factory turns into a
// concrete SDK call.
type CompletionRequest struct {
	ModelID  string
	System   string
	Messages []CompletionMessage
	MaxTokens int
}

// CompletionMessage is one request message; Role is "user" or "assistant".
type CompletionMessage struct {
	Role    string
	Content string
}

// CompletionResult is the provider-agnostic shape a Factory returns.
type CompletionResult struct {
	Content    string
	StopReason string
}

// Factory executes a completion request against a specific provider/model.
type Factory func(ctx context.Context, req CompletionRequest, auth any) (CompletionResult, error)

// Definition is spec.md §3's ProviderDefinition: identity, the models it
// offers, and the auth methods/order it prefers.
type Definition struct {
	ID                 string
	PluginID           string
	DisplayName        string
	Models             []ModelDefinition
	PreferredAuthOrder []string
	NewFactory         func() Factory
}
