// commands.go contains the cobra command definitions for cmd/slashbot,
// mirroring the teacher's one-builder-function-per-command layout
// (cmd/nexus/commands.go).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/slashbot/slashbot/internal/auth"
	"github.com/slashbot/slashbot/internal/gateway"
	"github.com/slashbot/slashbot/internal/hooks"
)

func buildServeCmd() *cobra.Command {
	var workspace string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Slashbot gateway server",
		Long: `Start the Slashbot gateway server: loads the layered RuntimeConfig,
activates builtin providers and the bundled Telegram/Discord connector
plugins, registers config-declared and filesystem hooks, then serves the
Bearer-authed JSON-RPC and health endpoints until SIGINT/SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), workspace)
		},
	}
	cmd.Flags().StringVarP(&workspace, "workspace", "w", "", "Workspace root (default: current directory)")
	return cmd
}

func runServe(ctx context.Context, workspace string) error {
	a, err := buildApp(ctx, workspace)
	if err != nil {
		return err
	}
	defer a.shutdown(context.Background())

	a.kernel.Dispatcher.Dispatch(ctx, hooks.DomainKernel, hooks.EventStartup, nil)

	if err := a.fsHook.StartWatching(ctx); err != nil {
		a.logger.Warn("filesystem hook watcher failed to start", "error", err)
	}

	server := gateway.NewServer(gateway.Config{
		Host:      a.cfg.Gateway.Host,
		Port:      a.cfg.Gateway.Port,
		AuthToken: a.cfg.Gateway.AuthToken,
	}, a.loader, a.loader, a.kernel, a.logger)

	if err := server.Start(ctx, gateway.LockOptions{ConfigPath: workspace}); err != nil {
		return fmt.Errorf("start gateway: %w", err)
	}
	a.logger.Info("slashbot gateway listening", "addr", server.Addr())

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	a.logger.Info("shutting down")
	return server.Stop(context.Background())
}

func buildHealthCmd() *cobra.Command {
	var workspace string
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Report kernel health without starting the gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd.Context(), workspace)
			if err != nil {
				return err
			}
			defer a.shutdown(context.Background())

			status, details := a.kernel.Health(cmd.Context())
			out, err := json.MarshalIndent(map[string]any{"status": status, "details": details}, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	cmd.Flags().StringVarP(&workspace, "workspace", "w", "", "Workspace root (default: current directory)")
	return cmd
}

func buildPluginsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "Manage and inspect loaded plugins",
	}
	cmd.AddCommand(buildPluginsListCmd())
	return cmd
}

func buildPluginsListCmd() *cobra.Command {
	var workspace string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every plugin's load diagnostic",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd.Context(), workspace)
			if err != nil {
				return err
			}
			defer a.shutdown(context.Background())

			out := cmd.OutOrStdout()
			for _, d := range a.loader.Diagnostics() {
				fmt.Fprintf(out, "%-24s %-8s %s\n", d.PluginID, d.Status, d.Reason)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&workspace, "workspace", "w", "", "Workspace root (default: current directory)")
	return cmd
}

func buildToolCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tool",
		Short: "Invoke a registered tool directly",
	}
	cmd.AddCommand(buildToolRunCmd())
	return cmd
}

func buildToolRunCmd() *cobra.Command {
	var workspace string
	cmd := &cobra.Command{
		Use:   "run <toolId> [jsonArgs]",
		Short: "Run one registered tool and print its ToolResult as JSON",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd.Context(), workspace)
			if err != nil {
				return err
			}
			defer a.shutdown(context.Background())

			rawArgs := json.RawMessage("{}")
			if len(args) == 2 {
				if !json.Valid([]byte(args[1])) {
					return fmt.Errorf("args is not valid JSON: %s", args[1])
				}
				rawArgs = json.RawMessage(args[1])
			}

			result := a.kernel.RunTool(cmd.Context(), args[0], rawArgs)
			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	cmd.Flags().StringVarP(&workspace, "workspace", "w", "", "Workspace root (default: current directory)")
	return cmd
}

func buildCommandCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "command",
		Short: "Invoke a registered plugin command directly",
	}
	cmd.AddCommand(buildCommandRunCmd())
	return cmd
}

func buildAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Inspect and resolve stored auth profiles",
	}
	cmd.AddCommand(buildAuthResolveCmd())
	return cmd
}

func buildAuthResolveCmd() *cobra.Command {
	var workspace, sessionID, provider string
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve a usable auth profile for a provider (spec.md §4.6)",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd.Context(), workspace)
			if err != nil {
				return err
			}
			defer a.shutdown(context.Background())

			resolved, err := a.authRouter.Resolve(auth.ResolveRequest{
				AgentID:          "default",
				SessionID:        sessionID,
				PinnedProviderID: provider,
			})
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(resolved, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	cmd.Flags().StringVarP(&workspace, "workspace", "w", "", "Workspace root (default: current directory)")
	cmd.Flags().StringVar(&sessionID, "session", "", "Session id used for per-session failure rotation")
	cmd.Flags().StringVar(&provider, "provider", "", "Pin a specific provider id instead of the configured default")
	return cmd
}

func buildCommandRunCmd() *cobra.Command {
	var workspace string
	cmd := &cobra.Command{
		Use:   "run <commandId> [args...]",
		Short: "Run one registered command with the remaining args",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd.Context(), workspace)
			if err != nil {
				return err
			}
			defer a.shutdown(context.Background())

			exitCode := a.kernel.RunCommand(cmd.Context(), args[0], args[1:])
			if exitCode != 0 {
				return fmt.Errorf("command %q exited with code %d", args[0], exitCode)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&workspace, "workspace", "w", "", "Workspace root (default: current directory)")
	return cmd
}
