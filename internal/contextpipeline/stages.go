package contextpipeline

import (
	"fmt"
	"strings"
)

// Prepare runs the four deterministic stages in order: history turn limit,
// prune, token-fit trim, sanitize (spec.md §4.3).
func Prepare(messages []Message, cfg Config) []Message {
	out := stageHistoryTurnLimit(messages, cfg)
	out = stagePrune(out, cfg)
	out = stageTokenFitTrim(out, cfg)
	out = stageSanitize(out, cfg)
	return out
}

// stageHistoryTurnLimit keeps every system message plus the most recent
// maxHistoryTurns user turns, together with every non-system message that
// falls between them.
func stageHistoryTurnLimit(messages []Message, cfg Config) []Message {
	if cfg.MaxHistoryTurns <= 0 {
		return messages
	}

	userIdxs := make([]int, 0)
	for i, m := range messages {
		if m.Role == RoleUser {
			userIdxs = append(userIdxs, i)
		}
	}
	if len(userIdxs) <= cfg.MaxHistoryTurns {
		return messages
	}

	cutoff := userIdxs[len(userIdxs)-cfg.MaxHistoryTurns]
	out := make([]Message, 0, len(messages))
	for i, m := range messages {
		if m.Role == RoleSystem || i >= cutoff {
			out = append(out, m)
		}
	}
	return out
}

// likelyToolResult applies spec.md §4.3's Stage 2 heuristic.
func likelyToolResult(content string) bool {
	if len(content) > 2000 {
		return true
	}
	for _, prefix := range []string{"{", "[", "ERROR [", "OK (", "```"} {
		if strings.HasPrefix(content, prefix) {
			return true
		}
	}
	return false
}

func stagePrune(messages []Message, cfg Config) []Message {
	budget := cfg.Budget()
	usageRatio := float64(EstimateTotal(messages)) / float64(budget)
	if usageRatio < cfg.SoftTrimThreshold {
		return messages
	}

	protectedIdx := make(map[int]bool)
	remaining := cfg.ProtectedRecentMessages
	for i := len(messages) - 1; i >= 0 && remaining > 0; i-- {
		if messages[i].Role == RoleAssistant {
			protectedIdx[i] = true
			remaining--
		}
	}

	out := make([]Message, len(messages))
	copy(out, messages)
	for i, m := range out {
		if m.Role == RoleSystem || protectedIdx[i] {
			continue
		}
		if !likelyToolResult(m.Content) {
			continue
		}
		if usageRatio >= cfg.HardClearThreshold {
			out[i].Content = "[content elided: context budget exceeded]"
			continue
		}
		if len(m.Content) > cfg.SoftTrimMinChars {
			out[i].Content = softTrim(m.Content, cfg.SoftTrimKeepChars)
		}
	}
	return out
}

func softTrim(content string, keep int) string {
	if keep <= 0 || keep*2 >= len(content) {
		return content
	}
	head := content[:keep]
	tail := content[len(content)-keep:]
	elided := len(content) - keep*2
	return fmt.Sprintf("%s\n\n[... %d characters elided ...]\n\n%s", head, elided, tail)
}

func stageTokenFitTrim(messages []Message, cfg Config) []Message {
	budget := cfg.Budget()
	if EstimateTotal(messages) <= budget {
		return messages
	}

	var systemMsgs, convoMsgs []Message
	for _, m := range messages {
		if m.Role == RoleSystem {
			systemMsgs = append(systemMsgs, m)
		} else {
			convoMsgs = append(convoMsgs, m)
		}
	}

	systemBudget := budget / 2
	keptSystem := make([]Message, 0, len(systemMsgs))
	systemUsed := 0
	for _, m := range systemMsgs {
		tokens := EstimateTokens(m.Content)
		if systemUsed+tokens <= systemBudget {
			keptSystem = append(keptSystem, m)
			systemUsed += tokens
			continue
		}
		remainingTokens := systemBudget - systemUsed
		if remainingTokens > 4 {
			maxChars := (remainingTokens - 4) * 4
			if maxChars > 0 && maxChars < len(m.Content) {
				truncated := m.Content[:maxChars] + "\n[... truncated ...]"
				keptSystem = append(keptSystem, Message{Role: RoleSystem, Content: truncated})
				systemUsed = systemBudget
			}
		}
		break
	}

	convoBudget := budget - systemUsed
	keptConvo := make([]Message, 0, len(convoMsgs))
	convoUsed := 0
	for i := len(convoMsgs) - 1; i >= 0; i-- {
		tokens := EstimateTokens(convoMsgs[i].Content)
		if len(keptConvo) > 0 && convoUsed+tokens > convoBudget {
			break
		}
		keptConvo = append([]Message{convoMsgs[i]}, keptConvo...)
		convoUsed += tokens
	}

	out := make([]Message, 0, len(keptSystem)+len(keptConvo))
	out = append(out, keptSystem...)
	out = append(out, keptConvo...)
	return out
}

func stageSanitize(messages []Message, cfg Config) []Message {
	filtered := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role != RoleSystem && len(m.Content) == 0 {
			continue
		}
		filtered = append(filtered, m)
	}

	if cfg.ProviderID != "google" {
		return filtered
	}

	out := make([]Message, 0, len(filtered))
	for _, m := range filtered {
		if m.Role == RoleSystem || len(out) == 0 {
			out = append(out, m)
			continue
		}
		last := &out[len(out)-1]
		if last.Role == m.Role {
			last.Content = last.Content + "\n\n" + m.Content
			continue
		}
		out = append(out, m)
	}
	return out
}
