// Package config loads the layered JSON runtime configuration described in
// spec.md §6: defaults merged with user, cwd, and workspace config.json
// files, then validated against the RuntimeConfig JSON Schema.
package config

import (
	"fmt"
)

// Config is RuntimeConfig: the validated, layered configuration consumed by
// the kernel at startup.
type Config struct {
	Gateway       GatewayConfig       `json:"gateway" yaml:"gateway"`
	Plugins       PluginsConfig       `json:"plugins" yaml:"plugins"`
	Providers     ProvidersConfig     `json:"providers" yaml:"providers"`
	Hooks         HooksConfig         `json:"hooks" yaml:"hooks"`
	CommandSafety CommandSafetyConfig `json:"commandSafety" yaml:"commandSafety"`
	Logging       LoggingConfig       `json:"logging" yaml:"logging"`
}

// GatewayConfig configures the Bearer-authed RPC/health HTTP server.
type GatewayConfig struct {
	Host      string `json:"host" yaml:"host"`
	Port      int    `json:"port" yaml:"port"`
	AuthToken string `json:"authToken" yaml:"authToken"`
}

// PluginsConfig gates and configures plugin activation.
type PluginsConfig struct {
	Allow   []string               `json:"allow,omitempty" yaml:"allow,omitempty"`
	Deny    []string                `json:"deny,omitempty" yaml:"deny,omitempty"`
	Entries map[string]PluginEntry `json:"entries,omitempty" yaml:"entries,omitempty"`
	Paths   []string               `json:"paths,omitempty" yaml:"paths,omitempty"`
}

// PluginEntry configures one plugin by id.
type PluginEntry struct {
	Enabled *bool          `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Config  map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
}

// ProvidersConfig names the active provider/model pin.
type ProvidersConfig struct {
	Active *ActiveProvider `json:"active,omitempty" yaml:"active,omitempty"`
}

// ActiveProvider pins the provider/model used when a request doesn't name one.
type ActiveProvider struct {
	ProviderID string `json:"providerId" yaml:"providerId"`
	ModelID    string `json:"modelId" yaml:"modelId"`
	APIKey     string `json:"apiKey,omitempty" yaml:"apiKey,omitempty"`
}

// HooksConfig configures the in-process hook dispatcher (internal/hooks).
type HooksConfig struct {
	DefaultTimeoutMs int                   `json:"defaultTimeoutMs" yaml:"defaultTimeoutMs"`
	Rules            map[string][]HookRule `json:"rules,omitempty" yaml:"rules,omitempty"`
}

// HookRule is one config-declared hook registration for an event.
type HookRule struct {
	Matcher string      `json:"matcher,omitempty" yaml:"matcher,omitempty"`
	Hooks   []HookEntry `json:"hooks" yaml:"hooks"`
}

// HookEntry is one handler within a HookRule.
type HookEntry struct {
	Type      string `json:"type" yaml:"type"`
	Command   string `json:"command" yaml:"command"`
	TimeoutMs int    `json:"timeoutMs,omitempty" yaml:"timeoutMs,omitempty"`
}

// CommandSafetyConfig governs shell-command tool execution.
type CommandSafetyConfig struct {
	DefaultTimeoutMs        int      `json:"defaultTimeoutMs" yaml:"defaultTimeoutMs"`
	RiskyCommands           []string `json:"riskyCommands,omitempty" yaml:"riskyCommands,omitempty"`
	RequireExplicitApproval bool     `json:"requireExplicitApproval" yaml:"requireExplicitApproval"`
}

// LoggingConfig configures the slog handler level.
type LoggingConfig struct {
	Level string `json:"level" yaml:"level"`
}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

func applyDefaults(cfg *Config) {
	if cfg.Gateway.Host == "" {
		cfg.Gateway.Host = "127.0.0.1"
	}
	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = 8787
	}
	if cfg.Hooks.DefaultTimeoutMs == 0 {
		cfg.Hooks.DefaultTimeoutMs = 5000
	}
	if cfg.CommandSafety.DefaultTimeoutMs == 0 {
		cfg.CommandSafety.DefaultTimeoutMs = 30000
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// ValidationError collects every schema/business-rule violation found
// while validating a Config, so callers see all problems at once instead
// of failing on the first.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 1 {
		return fmt.Sprintf("config invalid: %s", e.Issues[0])
	}
	return fmt.Sprintf("config invalid (%d issues): %v", len(e.Issues), e.Issues)
}

func validateConfig(cfg *Config) error {
	var issues []string

	if !validLogLevels[cfg.Logging.Level] {
		issues = append(issues, fmt.Sprintf("logging.level: invalid value %q (want debug|info|warn|error)", cfg.Logging.Level))
	}
	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		issues = append(issues, fmt.Sprintf("gateway.port: invalid port %d", cfg.Gateway.Port))
	}
	for _, id := range cfg.Plugins.Allow {
		if id == "" {
			issues = append(issues, "plugins.allow: entries must not be empty")
			break
		}
	}
	for event, rules := range cfg.Hooks.Rules {
		for i, rule := range rules {
			if len(rule.Hooks) == 0 {
				issues = append(issues, fmt.Sprintf("hooks.rules[%s][%d]: no hooks declared", event, i))
			}
			for j, h := range rule.Hooks {
				if h.Type != "command" {
					issues = append(issues, fmt.Sprintf("hooks.rules[%s][%d].hooks[%d]: unsupported type %q", event, i, j, h.Type))
				}
				if h.Command == "" {
					issues = append(issues, fmt.Sprintf("hooks.rules[%s][%d].hooks[%d]: command is required", event, i, j))
				}
			}
		}
	}

	if issues = append(issues, pluginValidationIssues(cfg)...); len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}
