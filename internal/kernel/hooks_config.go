package kernel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/slashbot/slashbot/internal/config"
	"github.com/slashbot/slashbot/internal/hooks"
)

// configHookTimeout bounds a config-declared command hook regardless of
// the dispatcher's own per-hook timeout, mirroring internal/fshooks'
// ScriptTimeout for filesystem hooks.
const configHookTimeout = 30 * time.Second

// matchFields names the payload field each lifecycle event's matcher
// compares against (spec.md §4.2: "a known matchField, e.g. toolId for
// tool events").
var matchFields = map[string]string{
	hooks.EventBeforeToolCall:    "toolId",
	hooks.EventAfterToolCall:     "toolId",
	hooks.EventToolResultPersist: "toolId",
	hooks.EventBeforeCommand:     "commandId",
	hooks.EventAfterCommand:      "commandId",
}

// lifecycleEvents is the set of events domainForEvent routes to
// DomainLifecycle; anything else not in DomainKernel's pair is DomainCustom.
var lifecycleEvents = map[string]bool{
	hooks.EventSessionStart:         true,
	hooks.EventSessionEnd:           true,
	hooks.EventMessageReceived:      true,
	hooks.EventMessageSending:       true,
	hooks.EventMessageSent:          true,
	hooks.EventBeforeToolCall:       true,
	hooks.EventAfterToolCall:        true,
	hooks.EventToolResultPersist:    true,
	hooks.EventBeforeCommand:        true,
	hooks.EventAfterCommand:         true,
	hooks.EventBeforePromptAssemble: true,
	hooks.EventAfterPromptAssemble:  true,
	hooks.EventBeforeLLMCall:        true,
	hooks.EventAfterLLMCall:         true,
	hooks.EventCLIInit:              true,
	hooks.EventCLIExit:              true,
}

func domainForEvent(event string) hooks.Domain {
	switch event {
	case hooks.EventStartup, hooks.EventShutdown:
		return hooks.DomainKernel
	case "":
		return hooks.DomainCustom
	default:
		if lifecycleEvents[event] {
			return hooks.DomainLifecycle
		}
		return hooks.DomainCustom
	}
}

// RegisterConfigHooks wires RuntimeConfig.hooks.rules into the dispatcher
// (spec.md §4.2 "Config-declared hooks"). Every entry must be type
// "command" — internal/config's schema already rejects anything else, so
// this only needs to run the command.
func (k *Kernel) RegisterConfigHooks(rules map[string][]config.HookRule) error {
	for event, ruleSet := range rules {
		domain := domainForEvent(event)
		matchField := matchFields[event]

		for _, rule := range ruleSet {
			for _, entry := range rule.Hooks {
				if entry.Type != "command" {
					return fmt.Errorf("kernel: unsupported config hook type %q for event %q", entry.Type, event)
				}

				command := entry.Command
				matcher := rule.Matcher
				if _, err := k.Dispatcher.Register(hooks.RegisterInput{
					Domain:      domain,
					Event:       event,
					TimeoutMs:   entry.TimeoutMs,
					Description: "config hook: " + command,
					Handler:     k.configHookHandler(event, command, matchField, matcher, k.cfg.WorkspaceRoot),
				}); err != nil {
					return fmt.Errorf("kernel: register config hook for %q: %w", event, err)
				}
			}
		}
	}
	return nil
}

// configHookHandler builds the hooks.Handler for one config-declared
// command hook: short-circuits on a matcher mismatch, else shells out to
// command with the dispatch payload passed as JSON.
func (k *Kernel) configHookHandler(event, command, matchField, matcher, workspaceRoot string) hooks.Handler {
	return func(ctx context.Context, payload hooks.Payload) (hooks.Payload, error) {
		if matchField != "" && matcher != "" {
			if v, ok := payload[matchField]; ok {
				if s, ok := v.(string); ok && s != matcher {
					return nil, nil
				}
			}
		}
		return runConfigHookCommand(ctx, command, event, workspaceRoot, payload, k.logger)
	}
}

// runConfigHookCommand executes command through a shell, passing the
// dispatch payload as JSON via SLASHBOT_HOOK_PAYLOAD, and derives a
// payload patch from stdout when it parses as a JSON object — the same
// convention internal/fshooks uses for filesystem hooks.
func runConfigHookCommand(ctx context.Context, command, event, workspaceRoot string, payload hooks.Payload, logger *slog.Logger) (hooks.Payload, error) {
	ctx, cancel := context.WithTimeout(ctx, configHookTimeout)
	defer cancel()

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("kernel: marshal hook payload: %w", err)
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	if workspaceRoot != "" {
		cmd.Dir = workspaceRoot
	}
	cmd.Env = append(cmd.Environ(),
		"SLASHBOT_HOOK_EVENT="+event,
		"SLASHBOT_HOOK_PAYLOAD="+string(payloadJSON),
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	if stderr.Len() > 0 {
		logger.Warn("config hook stderr", "command", command, "event", event, "output", stderr.String())
	}

	if runErr != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("kernel: config hook %q timed out after %s", command, configHookTimeout)
		}
		return nil, fmt.Errorf("kernel: config hook %q: %w", command, runErr)
	}

	return parseHookStdoutPatch(stdout.Bytes()), nil
}

func parseHookStdoutPatch(out []byte) hooks.Payload {
	trimmed := bytes.TrimSpace(out)
	if len(trimmed) == 0 {
		return nil
	}
	var patch hooks.Payload
	if err := json.Unmarshal(trimmed, &patch); err != nil {
		return nil
	}
	return patch
}
