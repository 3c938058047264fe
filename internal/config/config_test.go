package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeLayerConfig(t *testing.T, dir, content string) {
	t.Helper()
	configDir := filepath.Join(dir, ConfigDirName)
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, ConfigFilename), []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestLoadAppliesDefaultsWithNoLayers(t *testing.T) {
	home := t.TempDir()
	cwd := t.TempDir()
	workspace := t.TempDir()

	cfg, err := Load(home, cwd, workspace)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Gateway.Host != "127.0.0.1" {
		t.Errorf("Gateway.Host = %q, want 127.0.0.1", cfg.Gateway.Host)
	}
	if cfg.Gateway.Port != 8787 {
		t.Errorf("Gateway.Port = %d, want 8787", cfg.Gateway.Port)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", cfg.Logging.Level)
	}
}

func TestLoadMergesLayersInOrder(t *testing.T) {
	home := t.TempDir()
	cwd := t.TempDir()
	workspace := t.TempDir()

	writeLayerConfig(t, home, `{"gateway":{"host":"user-host","port":1111},"logging":{"level":"debug"}}`)
	writeLayerConfig(t, cwd, `{"gateway":{"port":2222}}`)

	cfg, err := Load(home, cwd, workspace)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Gateway.Host != "user-host" {
		t.Errorf("Gateway.Host = %q, want user-host (from user layer)", cfg.Gateway.Host)
	}
	if cfg.Gateway.Port != 2222 {
		t.Errorf("Gateway.Port = %d, want 2222 (overridden by cwd layer)", cfg.Gateway.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoadUnionDedupsPluginPaths(t *testing.T) {
	home := t.TempDir()
	cwd := t.TempDir()
	workspace := t.TempDir()

	writeLayerConfig(t, home, `{"plugins":{"paths":["a","b"]}}`)
	writeLayerConfig(t, cwd, `{"plugins":{"paths":["b","c"]}}`)

	cfg, err := Load(home, cwd, workspace)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := []string{"a", "b", "c"}
	if len(cfg.Plugins.Paths) != len(want) {
		t.Fatalf("Plugins.Paths = %v, want %v", cfg.Plugins.Paths, want)
	}
	for i, p := range want {
		if cfg.Plugins.Paths[i] != p {
			t.Errorf("Plugins.Paths[%d] = %q, want %q", i, cfg.Plugins.Paths[i], p)
		}
	}
}

func TestLoadOverridesPluginAllowList(t *testing.T) {
	home := t.TempDir()
	cwd := t.TempDir()
	workspace := t.TempDir()

	writeLayerConfig(t, home, `{"plugins":{"allow":["a","b"]}}`)
	writeLayerConfig(t, cwd, `{"plugins":{"allow":["b","c"]}}`)

	cfg, err := Load(home, cwd, workspace)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := []string{"b", "c"}
	if len(cfg.Plugins.Allow) != len(want) {
		t.Fatalf("Plugins.Allow = %v, want %v", cfg.Plugins.Allow, want)
	}
	for i, a := range want {
		if cfg.Plugins.Allow[i] != a {
			t.Errorf("Plugins.Allow[%d] = %q, want %q", i, cfg.Plugins.Allow[i], a)
		}
	}
}

func TestLoadRejectsInvalidLoggingLevel(t *testing.T) {
	home := t.TempDir()
	cwd := t.TempDir()
	workspace := t.TempDir()

	writeLayerConfig(t, home, `{"logging":{"level":"verbose"}}`)

	if _, err := Load(home, cwd, workspace); err == nil {
		t.Fatal("expected validation error for invalid logging.level")
	}
}

func TestLoadRejectsUnknownTopLevelField(t *testing.T) {
	home := t.TempDir()
	cwd := t.TempDir()
	workspace := t.TempDir()

	writeLayerConfig(t, home, `{"bogus":{"field":true}}`)

	if _, err := Load(home, cwd, workspace); err == nil {
		t.Fatal("expected error for unknown top-level field")
	}
}

func TestLoadRejectsHookRuleWithoutCommand(t *testing.T) {
	home := t.TempDir()
	cwd := t.TempDir()
	workspace := t.TempDir()

	writeLayerConfig(t, home, `{"hooks":{"rules":{"before_tool_call":[{"hooks":[{"type":"command"}]}]}}}`)

	_, err := Load(home, cwd, workspace)
	if err == nil {
		t.Fatal("expected validation error for hook entry missing command")
	}
}
