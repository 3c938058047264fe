package kernel

import (
	"context"

	"github.com/slashbot/slashbot/internal/contextpipeline"
)

// PrepareContext runs spec.md §4.3's four-stage pipeline over messages
// using the kernel's configured budget, ready to hand to a provider call.
func (k *Kernel) PrepareContext(messages []contextpipeline.Message) []contextpipeline.Message {
	return contextpipeline.Prepare(messages, k.cfg.PipelineConfig)
}

// ExecuteWithOverflowRecovery runs exec, escalating through the retry
// ladder spec.md §4.3 defines whenever exec's error matches the
// context-overflow pattern set.
func (k *Kernel) ExecuteWithOverflowRecovery(ctx context.Context, messages []contextpipeline.Message, exec contextpipeline.Execute, onRetry contextpipeline.RetryCallback) (any, error) {
	return contextpipeline.WithOverflowRecovery(ctx, messages, k.cfg.PipelineConfig, exec, onRetry)
}

// truncateForLLM applies spec.md §4.3's per-call tool-result truncation
// to the string a tool result feeds the model.
func (k *Kernel) truncateForLLM(s string) string {
	return contextpipeline.TruncateToolResult(s, k.cfg.PipelineConfig)
}
