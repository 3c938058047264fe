package kernel

import (
	"context"

	"github.com/slashbot/slashbot/internal/hooks"
	"github.com/slashbot/slashbot/internal/plugins"
)

// healthDetails is the Kernel.Health details payload: plugin load counts
// plus the full diagnostic list, so an operator can see which plugin
// tipped the status into degraded.
type healthDetails struct {
	Plugins struct {
		Loaded int `json:"loaded"`
		Failed int `json:"failed"`
	} `json:"plugins"`
	Diagnostics []plugins.Diagnostic `json:"diagnostics"`
}

// Health implements spec.md §4.4's health(): {status: ok|degraded, details}.
// Status is degraded when any plugin diagnostic is failed; this satisfies
// internal/gateway.HealthReporter.
func (k *Kernel) Health(ctx context.Context) (string, any) {
	diagnostics := k.Loader.Diagnostics()

	var details healthDetails
	details.Diagnostics = diagnostics

	status := "ok"
	for _, d := range diagnostics {
		if d.Status == plugins.StatusLoaded {
			details.Plugins.Loaded++
			continue
		}
		details.Plugins.Failed++
		status = "degraded"
	}

	return status, details
}

// DeactivatePlugins implements spec.md §4.4's deactivatePlugins(): every
// loaded plugin's optional Deactivate is called in reverse activation
// order; failures are logged, never thrown. The kernel domain shutdown
// hook then runs for any plugin that chose to observe teardown that way
// instead of (or in addition to) Definition.Deactivate.
func (k *Kernel) DeactivatePlugins(ctx context.Context) {
	k.Loader.DeactivateAll(ctx, func(pluginID string, err error) {
		k.logger.Warn("plugin deactivation failed", "plugin_id", pluginID, "error", err)
	})

	report := k.Dispatcher.Dispatch(ctx, hooks.DomainKernel, hooks.EventShutdown, hooks.Payload{})
	for _, failure := range report.Failures {
		k.logger.Warn("shutdown hook failed",
			"plugin_id", failure.PluginID, "hook_id", failure.HookID, "error", failure.Message, "timed_out", failure.TimedOut)
	}
}
