package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/slashbot/slashbot/internal/audit"
	"github.com/slashbot/slashbot/internal/auth"
	"github.com/slashbot/slashbot/internal/config"
	"github.com/slashbot/slashbot/internal/contextpipeline"
	"github.com/slashbot/slashbot/internal/eventbus"
	"github.com/slashbot/slashbot/internal/fshooks"
	"github.com/slashbot/slashbot/internal/hooks"
	"github.com/slashbot/slashbot/internal/kernel"
	"github.com/slashbot/slashbot/internal/observability"
	"github.com/slashbot/slashbot/internal/plugins"
	"github.com/slashbot/slashbot/internal/plugins/bundled/discord"
	"github.com/slashbot/slashbot/internal/plugins/bundled/telegram"
	"github.com/slashbot/slashbot/internal/registry"
	"github.com/slashbot/slashbot/pkg/pluginsdk"
)

// app bundles every collaborator the kernel needs, built once per CLI
// invocation from the layered RuntimeConfig (spec.md §6).
type app struct {
	cfg        *config.Config
	kernel     *kernel.Kernel
	loader     *plugins.Loader
	fsHook     *fshooks.Manager
	authRouter *auth.Router
	logger     *slog.Logger
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// buildApp loads config, wires the kernel, registers builtin providers and
// bundled connector plugins, and activates everything (spec.md §4.4/§4.5).
// Callers must arrange to call a.kernel.DeactivatePlugins on shutdown.
func buildApp(ctx context.Context, workspace string) (*app, error) {
	home, _ := os.UserHomeDir()
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolve cwd: %w", err)
	}
	if workspace == "" {
		workspace = cwd
	}

	cfg, err := config.Load(home, cwd, workspace)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel(cfg.Logging.Level)}))

	bus := eventbus.New()
	dispatcher := hooks.NewDispatcher(logger,
		hooks.WithDefaultTimeout(time.Duration(cfg.Hooks.DefaultTimeoutMs)*time.Millisecond),
		hooks.WithEventBus(bus),
	)
	loader := plugins.NewLoader(dispatcher, logger)
	status := registry.NewStatusRegistry()

	metrics := observability.NewMetrics()

	auditCfg := audit.DefaultConfig()
	auditLogger, err := audit.NewLogger(auditCfg)
	if err != nil {
		return nil, fmt.Errorf("create audit logger: %w", err)
	}

	k := kernel.New(kernel.Config{
		WorkspaceRoot:  workspace,
		PipelineConfig: defaultPipelineConfig(),
	}, dispatcher, bus, loader, status, metrics, auditLogger, logger)

	defs, err := registerBuiltinProviders(ctx, loader)
	if err != nil {
		return nil, err
	}
	registerBundledConnectors(loader, cfg, logger)

	var activeProvider, activeModel string
	if cfg.Providers.Active != nil {
		activeProvider = cfg.Providers.Active.ProviderID
		activeModel = cfg.Providers.Active.ModelID
	}
	authStore := auth.NewStore(home, cwd, workspace, "default")
	authRouter := auth.NewRouter(authStore, activeProvider, activeModel)
	for _, def := range defs {
		if len(def.PreferredAuthOrder) == 0 {
			continue
		}
		methods := make([]auth.Method, len(def.PreferredAuthOrder))
		for i, m := range def.PreferredAuthOrder {
			methods[i] = auth.Method(m)
		}
		authRouter.SetPreferredAuthOrder(def.ID, methods)
	}

	if len(cfg.Plugins.Paths) > 0 {
		discovered, err := plugins.DiscoverManifests(cfg.Plugins.Paths)
		if err != nil {
			logger.Warn("external plugin manifest discovery failed", "error", err)
		} else {
			for id, info := range discovered {
				logger.Info("discovered external plugin manifest", "plugin", id, "path", info.Path)
			}
		}
	}

	if err := loader.LoadAll(ctx, toPluginsConfig(cfg.Plugins)); err != nil {
		return nil, fmt.Errorf("load plugins: %w", err)
	}

	if err := k.RegisterConfigHooks(cfg.Hooks.Rules); err != nil {
		return nil, fmt.Errorf("register config hooks: %w", err)
	}

	fsManager := fshooks.NewManager(dispatcher, workspace, logger)
	if err := fsManager.Discover(ctx); err != nil {
		logger.Warn("filesystem hook discovery failed", "error", err)
	}

	return &app{cfg: cfg, kernel: k, loader: loader, fsHook: fsManager, authRouter: authRouter, logger: logger}, nil
}

func (a *app) shutdown(ctx context.Context) {
	a.kernel.DeactivatePlugins(ctx)
	if a.fsHook != nil {
		if err := a.fsHook.Close(); err != nil {
			a.logger.Warn("closing filesystem hook watcher", "error", err)
		}
	}
}

func defaultPipelineConfig() contextpipeline.Config {
	return contextpipeline.Config{
		ContextLimit:              200000,
		ReserveTokens:             8000,
		ToolResultMaxContextShare: 0.25,
		ToolResultHardMax:         20000,
		ToolResultMinKeep:         500,
		SoftTrimThreshold:         0.75,
		HardClearThreshold:        0.92,
		SoftTrimMinChars:          4000,
		SoftTrimKeepChars:         1000,
		ProtectedRecentMessages:   4,
		MaxHistoryTurns:           200,
	}
}

func toPluginsConfig(cfg config.PluginsConfig) plugins.Config {
	entries := make(map[string]plugins.EntryConfig, len(cfg.Entries))
	for id, entry := range cfg.Entries {
		entries[id] = plugins.EntryConfig{Enabled: entry.Enabled, Config: entry.Config}
	}
	return plugins.Config{
		Enabled: true,
		Allow:   cfg.Allow,
		Deny:    cfg.Deny,
		Paths:   cfg.Paths,
		Entries: entries,
	}
}

// registerBundledConnectors adds the Telegram/Discord demonstration plugins
// (SPEC_FULL.md §C.3); each only activates if a token is present in its
// plugins.entries config, otherwise Activate returns an error and the
// Loader records a failed diagnostic without aborting the rest of startup.
func registerBundledConnectors(loader *plugins.Loader, cfg *config.Config, logger *slog.Logger) {
	tgToken, _ := cfg.Plugins.Entries[telegram.ManifestID].Config["token"].(string)
	if err := loader.Add(telegram.New(telegram.Config{Token: tgToken}, logger).Definition()); err != nil {
		logger.Warn("add telegram plugin", "error", err)
	}

	dcToken, _ := cfg.Plugins.Entries[discord.ManifestID].Config["token"].(string)
	if err := loader.Add(discord.New(discord.Config{Token: dcToken}, logger).Definition()); err != nil {
		logger.Warn("add discord plugin", "error", err)
	}
}

// asProviderPlugin wraps a providers.Definition (spec.md §3's
// ProviderDefinition) in a synthetic plugins.Definition so it flows
// through the same Loader.Add/LoadAll/RegisterProvider path every other
// plugin uses.
func asProviderPlugin(id string, register plugins.RegisterFunc) *plugins.Definition {
	return &plugins.Definition{
		Manifest: &pluginsdk.Manifest{ID: "builtin." + id, Description: "builtin model provider"},
		Register: register,
	}
}
