package fshooks

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/slashbot/slashbot/internal/hooks"
)

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunScriptSeesEnvAndCwd(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "probe.sh", `#!/bin/sh
echo "{\"event\":\"$SLASHBOT_HOOK_EVENT\"}"
`)

	patch, err := runScript(context.Background(), script, "before_tool_call", dir, hooks.Payload{"toolId": "echo"}, slog.Default())
	if err != nil {
		t.Fatalf("runScript() error = %v", err)
	}
	if patch["event"] != "before_tool_call" {
		t.Errorf("patch = %v, want event=before_tool_call", patch)
	}
}

func TestRunScriptNonJSONStdoutIsNoOpPatch(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "log.sh", "#!/bin/sh\necho just some log text\n")

	patch, err := runScript(context.Background(), script, "session_start", dir, hooks.Payload{}, slog.Default())
	if err != nil {
		t.Fatalf("runScript() error = %v", err)
	}
	if patch != nil {
		t.Errorf("patch = %v, want nil", patch)
	}
}

func TestRunScriptNonZeroExitIsError(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "fail.sh", "#!/bin/sh\nexit 1\n")

	if _, err := runScript(context.Background(), script, "session_start", dir, hooks.Payload{}, slog.Default()); err == nil {
		t.Fatal("expected error for non-zero exit")
	}
}

func TestRunScriptTimeout(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "slow.sh", "#!/bin/sh\nsleep 5\n")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := runScript(ctx, script, "session_start", dir, hooks.Payload{}, slog.Default()); err == nil {
		t.Fatal("expected timeout error")
	}
}
