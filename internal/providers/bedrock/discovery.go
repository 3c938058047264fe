// Package bedrock registers the builtin AWS Bedrock provider, discovering
// the account's available Claude-on-Bedrock models via the Bedrock control
// plane (bedrock.ListFoundationModels) and completing through the
// bedrockruntime data plane (bedrockruntime.Converse).
package bedrock

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrock"
	"github.com/aws/aws-sdk-go-v2/service/bedrock/types"

	"github.com/slashbot/slashbot/internal/providers"
)

// DiscoveryConfig holds configuration for model discovery.
type DiscoveryConfig struct {
	// Region is the AWS region to query (default: us-east-1)
	Region string

	// RefreshInterval is how long to cache discovered models (default: 1 hour)
	RefreshInterval time.Duration

	// DefaultContextWindow is used when a model's family isn't recognized.
	DefaultContextWindow int

	// AccessKeyID for explicit AWS credentials (optional)
	AccessKeyID string

	// SecretAccessKey for explicit AWS credentials (optional)
	SecretAccessKey string

	// SessionToken for temporary credentials (optional)
	SessionToken string
}

// discoveryCache holds cached model discovery results with thread-safe access.
type discoveryCache struct {
	mu        sync.RWMutex
	models    []providers.ModelDefinition
	expiresAt time.Time
	inFlight  chan struct{} // Used for request deduplication
}

// globalCache is the package-level cache for discovered models.
var globalCache = &discoveryCache{}

// BedrockClientAPI defines the interface for Bedrock client operations.
// This allows for mocking in tests.
type BedrockClientAPI interface {
	ListFoundationModels(ctx context.Context, params *bedrock.ListFoundationModelsInput, optFns ...func(*bedrock.Options)) (*bedrock.ListFoundationModelsOutput, error)
}

// clientFactory allows overriding client creation for testing.
var clientFactory func(cfg aws.Config) BedrockClientAPI

func init() {
	clientFactory = func(cfg aws.Config) BedrockClientAPI {
		return bedrock.NewFromConfig(cfg)
	}
}

// DiscoverModels fetches the account's available Claude-on-Bedrock models,
// already converted to providers.ModelDefinition (spec.md §3), with caching
// and request deduplication. Only Anthropic models are surfaced: Definition
// (bedrock.go) registers this as an Anthropic-on-Bedrock provider, so a
// Llama/Titan/Cohere catalog entry would never be reachable through it.
func DiscoverModels(ctx context.Context, cfg *DiscoveryConfig) ([]providers.ModelDefinition, error) {
	if cfg == nil {
		cfg = &DiscoveryConfig{}
	}
	applyDefaults(cfg)

	globalCache.mu.RLock()
	if time.Now().Before(globalCache.expiresAt) && len(globalCache.models) > 0 {
		models := globalCache.models
		globalCache.mu.RUnlock()
		return models, nil
	}
	globalCache.mu.RUnlock()

	globalCache.mu.Lock()

	if time.Now().Before(globalCache.expiresAt) && len(globalCache.models) > 0 {
		models := globalCache.models
		globalCache.mu.Unlock()
		return models, nil
	}

	if globalCache.inFlight != nil {
		inFlight := globalCache.inFlight
		globalCache.mu.Unlock()

		select {
		case <-inFlight:
			globalCache.mu.RLock()
			models := globalCache.models
			globalCache.mu.RUnlock()
			return models, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	globalCache.inFlight = make(chan struct{})
	globalCache.mu.Unlock()

	models, err := fetchModels(ctx, cfg)

	globalCache.mu.Lock()
	if err == nil {
		globalCache.models = models
		globalCache.expiresAt = time.Now().Add(cfg.RefreshInterval)
	}
	close(globalCache.inFlight)
	globalCache.inFlight = nil
	globalCache.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return models, nil
}

// ClearCache clears the discovery cache, forcing a refresh on next call.
func ClearCache() {
	globalCache.mu.Lock()
	defer globalCache.mu.Unlock()
	globalCache.models = nil
	globalCache.expiresAt = time.Time{}
}

// fetchModels retrieves Anthropic models from the AWS Bedrock control plane.
func fetchModels(ctx context.Context, cfg *DiscoveryConfig) ([]providers.ModelDefinition, error) {
	var awsCfg aws.Config
	var err error

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		awsCfg, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(cfg.Region),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID,
				cfg.SecretAccessKey,
				cfg.SessionToken,
			)),
		)
	} else {
		awsCfg, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(cfg.Region),
		)
	}
	if err != nil {
		return nil, err
	}

	client := clientFactory(awsCfg)

	output, err := client.ListFoundationModels(ctx, &bedrock.ListFoundationModelsInput{})
	if err != nil {
		return nil, err
	}

	models := make([]providers.ModelDefinition, 0, len(output.ModelSummaries))
	for _, summary := range output.ModelSummaries {
		if !isActiveAnthropicModel(&summary) {
			continue
		}
		models = append(models, toModelDefinition(&summary, len(models), cfg.DefaultContextWindow))
	}
	return models, nil
}

// isActiveAnthropicModel keeps only ACTIVE Anthropic foundation models:
// Definition (bedrock.go) registers this provider as "AWS Bedrock" but its
// static fallback and PreferredAuthOrder only ever target Claude, so
// surfacing Llama/Titan/Cohere/Mistral entries here would list models this
// provider's factory can't actually route a completion to.
func isActiveAnthropicModel(summary *types.FoundationModelSummary) bool {
	if summary == nil {
		return false
	}
	if summary.ModelLifecycle != nil {
		status := string(summary.ModelLifecycle.Status)
		if status != "" && status != "ACTIVE" {
			return false
		}
	}
	return strings.EqualFold(aws.ToString(summary.ProviderName), "anthropic") ||
		strings.HasPrefix(strings.ToLower(aws.ToString(summary.ModelId)), "anthropic.")
}

// toModelDefinition converts an AWS FoundationModelSummary directly into the
// provider registry's shape, tagging vision/reasoning/streaming capabilities
// from the summary's modality and model-id fields.
func toModelDefinition(summary *types.FoundationModelSummary, priority int, defaultContextWindow int) providers.ModelDefinition {
	modelID := strings.ToLower(aws.ToString(summary.ModelId))

	caps := []providers.ModelCapability{providers.CapabilityTools}
	if isReasoningModel(modelID) {
		caps = append(caps, providers.CapabilityReasoning)
	}
	for _, m := range summary.InputModalities {
		if m == types.ModelModalityImage {
			caps = append(caps, providers.CapabilityVision)
			break
		}
	}
	if aws.ToBool(summary.ResponseStreamingSupported) {
		caps = append(caps, providers.CapabilityStreaming)
	}

	return providers.ModelDefinition{
		ID:            aws.ToString(summary.ModelId),
		DisplayName:   aws.ToString(summary.ModelName),
		ContextWindow: claudeContextWindow(modelID, defaultContextWindow),
		Priority:      priority,
		Capabilities:  caps,
	}
}

// isReasoningModel flags Claude generations with extended reasoning.
func isReasoningModel(modelID string) bool {
	patterns := []string{"claude-3-5", "claude-sonnet-4", "claude-opus-4"}
	for _, p := range patterns {
		if strings.Contains(modelID, p) {
			return true
		}
	}
	return false
}

// claudeContextWindow returns the context window for known Claude
// generations on Bedrock, falling back to defaultSize otherwise.
func claudeContextWindow(modelID string, defaultSize int) int {
	if strings.Contains(modelID, "claude-3") || strings.Contains(modelID, "claude-sonnet-4") || strings.Contains(modelID, "claude-opus-4") {
		return 200000
	}
	if strings.Contains(modelID, "claude-v2") || strings.Contains(modelID, "claude-2") {
		return 200000
	}
	if strings.Contains(modelID, "claude-instant") {
		return 100000
	}
	return defaultSize
}

// applyDefaults sets default values for unset config fields.
func applyDefaults(cfg *DiscoveryConfig) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.RefreshInterval == 0 {
		cfg.RefreshInterval = time.Hour
	}
	if cfg.DefaultContextWindow == 0 {
		cfg.DefaultContextWindow = 200000
	}
}
