package kernel

import (
	"context"
	"strings"

	"github.com/slashbot/slashbot/internal/hooks"
)

// AssemblePrompt implements spec.md §4.4's assemblePrompt: dispatch
// before_prompt_assemble (which may rewrite the core prompt), compose the
// core prompt with every priority-sorted PromptSection and ContextProvider
// output (blank-line separated, empty parts skipped), then dispatch
// after_prompt_assemble (which may rewrite the final string).
func (k *Kernel) AssemblePrompt(ctx context.Context) string {
	core := k.cfg.CorePrompt
	beforeReport := k.Dispatcher.Dispatch(ctx, hooks.DomainLifecycle, hooks.EventBeforePromptAssemble, hooks.Payload{
		"corePrompt": core,
	})
	if v, ok := beforeReport.FinalPayload["corePrompt"].(string); ok {
		core = v
	}

	parts := []string{core}

	for _, section := range k.sortedSections() {
		if section.Render == nil {
			continue
		}
		if text := section.Render(ctx); text != "" {
			parts = append(parts, text)
		}
	}

	for _, provide := range k.contextProviders() {
		if text := provide(ctx); text != "" {
			parts = append(parts, text)
		}
	}

	assembled := joinNonEmpty(parts)

	afterReport := k.Dispatcher.Dispatch(ctx, hooks.DomainLifecycle, hooks.EventAfterPromptAssemble, hooks.Payload{
		"prompt": assembled,
	})
	if v, ok := afterReport.FinalPayload["prompt"].(string); ok {
		assembled = v
	}

	return assembled
}

func joinNonEmpty(parts []string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n")
}
