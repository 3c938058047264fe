package fshooks

import (
	"os"
	"path/filepath"
	"strings"
)

// Script is one discovered filesystem hook.
type Script struct {
	Event string // e.g. "before_tool_call", or a plugin-defined custom event
	Name  string // the <name> segment, used only for logging/identification
	Path  string
}

// HooksDirName is the directory name searched under the workspace root,
// per spec.md §6: $WORKSPACE/.slashbot/hooks/.
const HooksDirName = "hooks"

// hooksDir returns $workspaceRoot/.slashbot/hooks.
func hooksDir(workspaceRoot string) string {
	return filepath.Join(workspaceRoot, ".slashbot", HooksDirName)
}

// Discover scans $workspaceRoot/.slashbot/hooks for files named
// <event>.<name>.sh and returns one Script per match. A missing directory
// is not an error — it simply yields no scripts.
func Discover(workspaceRoot string) ([]Script, error) {
	dir := hooksDir(workspaceRoot)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var scripts []Script
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		script, ok := parseScriptName(entry.Name())
		if !ok {
			continue
		}
		script.Path = filepath.Join(dir, entry.Name())
		scripts = append(scripts, script)
	}
	return scripts, nil
}

// parseScriptName splits "<event>.<name>.sh" into a Script. Both <event>
// and <name> may contain no further dots, matching the reference's naming
// convention; files that don't end in ".sh" or have fewer than three
// dot-separated segments are skipped.
func parseScriptName(filename string) (Script, bool) {
	if !strings.HasSuffix(filename, ".sh") {
		return Script{}, false
	}
	base := strings.TrimSuffix(filename, ".sh")
	parts := strings.SplitN(base, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Script{}, false
	}
	return Script{Event: parts[0], Name: parts[1]}, true
}
