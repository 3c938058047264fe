package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/slashbot/slashbot/internal/providers"
)

// ProviderID is the provider id used in AuthProfile/ProviderDefinition.
const ProviderID = "bedrock"

// Definition returns the builtin AWS Bedrock provider definition. Its
// model list is populated by DiscoverModels against the configured AWS
// account at kernel startup, falling back to a small static set if
// discovery fails (no AWS credentials in the environment, no network).
func Definition(ctx context.Context, cfg *DiscoveryConfig) providers.Definition {
	models, err := DiscoverModels(ctx, cfg)
	if err != nil || len(models) == 0 {
		models = staticFallbackModels()
	}

	return providers.Definition{
		ID:                 ProviderID,
		PluginID:           "builtin",
		DisplayName:        "AWS Bedrock",
		Models:             models,
		PreferredAuthOrder: []string{"api_key"},
		NewFactory:         NewFactory,
	}
}

func staticFallbackModels() []providers.ModelDefinition {
	return []providers.ModelDefinition{
		{
			ID:            "anthropic.claude-3-5-sonnet-20241022-v2:0",
			DisplayName:   "Claude 3.5 Sonnet v2",
			ContextWindow: 200000,
			Capabilities:  []providers.ModelCapability{providers.CapabilityTools, providers.CapabilityVision, providers.CapabilityReasoning, providers.CapabilityStreaming},
		},
		{
			ID:            "anthropic.claude-3-haiku-20240307-v1:0",
			DisplayName:   "Claude 3 Haiku",
			ContextWindow: 200000,
			Priority:      1,
			Capabilities:  []providers.ModelCapability{providers.CapabilityTools, providers.CapabilityVision, providers.CapabilityStreaming},
		},
	}
}

// bedrockCredential is the shape expected in an api_key AuthProfile's data
// field for the bedrock provider: static AWS keys, or a bare region string
// to fall back to ambient credentials (instance role, env vars, etc).
type bedrockCredential struct {
	Region          string `json:"region"`
	AccessKeyID     string `json:"accessKeyId,omitempty"`
	SecretAccessKey string `json:"secretAccessKey,omitempty"`
	SessionToken    string `json:"sessionToken,omitempty"`
}

// NewFactory returns a providers.Factory backed by bedrockruntime's
// Converse API. auth must be the JSON-encoded bedrockCredential bytes
// from the resolved AuthProfile's data field.
func NewFactory() providers.Factory {
	return func(ctx context.Context, req providers.CompletionRequest, auth any) (providers.CompletionResult, error) {
		raw, ok := auth.([]byte)
		if !ok {
			return providers.CompletionResult{}, fmt.Errorf("bedrock: credential must be raw profile data")
		}
		var cred bedrockCredential
		if err := json.Unmarshal(raw, &cred); err != nil {
			return providers.CompletionResult{}, fmt.Errorf("bedrock: decode credential: %w", err)
		}
		if cred.Region == "" {
			cred.Region = "us-east-1"
		}

		opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cred.Region)}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return providers.CompletionResult{}, fmt.Errorf("bedrock: load aws config: %w", err)
		}
		if cred.AccessKeyID != "" {
			awsCfg.Credentials = aws.NewCredentialsCache(aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
				return aws.Credentials{
					AccessKeyID:     cred.AccessKeyID,
					SecretAccessKey: cred.SecretAccessKey,
					SessionToken:    cred.SessionToken,
				}, nil
			}))
		}

		client := bedrockruntime.NewFromConfig(awsCfg)

		messages := make([]types.Message, 0, len(req.Messages))
		for _, m := range req.Messages {
			role := types.ConversationRoleUser
			if m.Role == "assistant" {
				role = types.ConversationRoleAssistant
			}
			messages = append(messages, types.Message{
				Role:    role,
				Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: m.Content}},
			})
		}

		input := &bedrockruntime.ConverseInput{
			ModelId:  aws.String(req.ModelID),
			Messages: messages,
		}
		if req.System != "" {
			input.System = []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: req.System}}
		}
		if req.MaxTokens > 0 {
			maxTokens := min(req.MaxTokens, math.MaxInt32)
			// #nosec G115 -- bounded by min above
			input.InferenceConfig = &types.InferenceConfiguration{MaxTokens: aws.Int32(int32(maxTokens))}
		}

		resp, err := client.Converse(ctx, input)
		if err != nil {
			return providers.CompletionResult{}, fmt.Errorf("bedrock: converse: %w", err)
		}

		var content string
		if msg, ok := resp.Output.(*types.ConverseOutputMemberMessage); ok {
			for _, block := range msg.Value.Content {
				if text, ok := block.(*types.ContentBlockMemberText); ok {
					content += text.Value
				}
			}
		}

		return providers.CompletionResult{
			Content:    content,
			StopReason: string(resp.StopReason),
		}, nil
	}
}
