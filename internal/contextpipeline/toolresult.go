package contextpipeline

import (
	"fmt"
	"strings"
)

// TruncateToolResult implements spec.md §4.3's per-call tool-result
// truncation, distinct from the message-level pruning in Stage 2.
func TruncateToolResult(result string, cfg Config) string {
	maxChars := int(float64(cfg.ContextLimit) * 4 * cfg.ToolResultMaxContextShare)
	if cfg.ToolResultHardMax > 0 && cfg.ToolResultHardMax < maxChars {
		maxChars = cfg.ToolResultHardMax
	}
	if maxChars < cfg.ToolResultMinKeep {
		maxChars = cfg.ToolResultMinKeep
	}
	if len(result) <= maxChars {
		return result
	}

	cut := maxChars
	tailStart := maxChars - 200
	if tailStart < 0 {
		tailStart = 0
	}
	if idx := strings.LastIndex(result[tailStart:maxChars], "\n"); idx >= 0 {
		cut = tailStart + idx
	}

	truncatedChars := len(result) - cut
	return fmt.Sprintf("%s\n\n[... truncated %d characters ...]", result[:cut], truncatedChars)
}
