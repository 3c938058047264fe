// Package fshooks discovers and runs shell-script hooks living under
// $WORKSPACE/.slashbot/hooks/<event>.<name>.sh (spec.md §4.2, §6), and keeps
// that set current with an fsnotify watcher so scripts added or removed at
// runtime take effect without a process restart (SPEC_FULL.md §C.2).
package fshooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/slashbot/slashbot/internal/hooks"
)

// ScriptTimeout bounds every filesystem-hook invocation regardless of the
// dispatcher's own per-hook timeout (spec.md §6: "30s timeout").
const ScriptTimeout = 30 * time.Second

// runScript executes a discovered hook script with the environment spec.md
// §6 names, captures stdout/stderr, and derives a payload patch from stdout
// when it parses as a JSON object — the same "handler may return a partial
// payload" convention internal/hooks.Handler uses for in-process handlers.
func runScript(ctx context.Context, path, event, workspaceRoot string, payload hooks.Payload, logger *slog.Logger) (hooks.Payload, error) {
	ctx, cancel := context.WithTimeout(ctx, ScriptTimeout)
	defer cancel()

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("fshooks: marshal payload: %w", err)
	}

	cmd := exec.CommandContext(ctx, path)
	cmd.Dir = workspaceRoot
	cmd.Env = append(cmd.Environ(),
		"SLASHBOT_HOOK_EVENT="+event,
		"SLASHBOT_HOOK_PAYLOAD="+string(payloadJSON),
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	if stdout.Len() > 0 {
		logger.Debug("fshook stdout", "path", path, "event", event, "output", stdout.String())
	}
	if stderr.Len() > 0 {
		logger.Warn("fshook stderr", "path", path, "event", event, "output", stderr.String())
	}

	if runErr != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("fshooks: %s timed out after %s", path, ScriptTimeout)
		}
		return nil, fmt.Errorf("fshooks: %s: %w", path, runErr)
	}

	return parseStdoutPatch(stdout.Bytes()), nil
}

// parseStdoutPatch returns stdout decoded as a JSON object patch, or nil if
// stdout is empty or not a JSON object — a script that just prints logs
// produces a no-op patch rather than an error.
func parseStdoutPatch(out []byte) hooks.Payload {
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
