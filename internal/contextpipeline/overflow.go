package contextpipeline

import (
	"context"
	"errors"
	"strconv"
	"strings"
)

// overflowPatterns is the curated substring-match set spec.md §4.3 defines
// for recognizing a context-overflow error from a provider.
var overflowPatterns = []string{
	"request too large",
	"context length exceeded",
	"maximum context length",
	"prompt is too long",
	"exceeds model context window",
	"context overflow",
}

// ErrOverflowRecoveryExhausted is returned once all retry attempts in
// withOverflowRecovery have failed with a recognized overflow error.
var ErrOverflowRecoveryExhausted = errors.New("OVERFLOW_RECOVERY_EXHAUSTED")

// IsOverflowError reports whether err matches the context-overflow pattern
// set, including the HTTP 413-plus-"too large" co-occurrence case.
func IsOverflowError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range overflowPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	if strings.Contains(msg, strconv.Itoa(413)) && strings.Contains(msg, "too large") {
		return true
	}
	return false
}

// Execute is an LLM call wrapped by withOverflowRecovery. It receives the
// prepared messages for the current attempt and returns its result or an
// error.
type Execute func(ctx context.Context, messages []Message) (any, error)

// RetryCallback is invoked with the attempt index (1-based, since attempt 0
// is the initial call) and the recovery strategy name before each retry.
type RetryCallback func(attempt int, strategy string)

// strategyNames mirrors the four attempts' labels, used by RetryCallback.
var strategyNames = []string{"", "aggressive-trim", "truncate-oversized", "protect-recent"}

// WithOverflowRecovery wraps exec in spec.md §4.3's four-attempt escalation
// ladder. messages is the caller-prepared attempt-0 input; cfg is the
// pipeline config used to derive subsequent attempts.
func WithOverflowRecovery(ctx context.Context, messages []Message, cfg Config, exec Execute, onRetry RetryCallback) (any, error) {
	attempt0 := messages
	result, err := exec(ctx, attempt0)
	if err == nil {
		return result, nil
	}
	if !IsOverflowError(err) {
		return nil, err
	}

	for attempt := 1; attempt <= 3; attempt++ {
		if onRetry != nil {
			onRetry(attempt, strategyNames[attempt])
		}
		next := escalate(attempt0, cfg, attempt)
		result, err = exec(ctx, next)
		if err == nil {
			return result, nil
		}
		if !IsOverflowError(err) {
			return nil, err
		}
	}

	return nil, ErrOverflowRecoveryExhausted
}

func escalate(original []Message, cfg Config, attempt int) []Message {
	switch attempt {
	case 1:
		reserve := cfg.ReserveTokens + cfg.ContextLimit/4
		return Prepare(original, cfg.withReserveTokens(reserve))
	case 2:
		out := make([]Message, len(original))
		copy(out, original)
		for i, m := range out {
			if m.Role != RoleSystem && len(m.Content) > 8000 {
				out[i].Content = m.Content[:4000] + "\n[... truncated ...]"
			}
		}
		return out
	case 3:
		var system, rest []Message
		for _, m := range original {
			if m.Role == RoleSystem {
				system = append(system, m)
			} else {
				rest = append(rest, m)
			}
		}
		if len(rest) > 4 {
			rest = rest[len(rest)-4:]
		}
		out := make([]Message, 0, len(system)+len(rest))
		out = append(out, system...)
		out = append(out, rest...)
		return out
	default:
		return original
	}
}
