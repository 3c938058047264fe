// Package main provides the CLI entry point for Slashbot, the local-first
// plugin-extensible assistant host (spec.md §1).
//
// # Basic Usage
//
// Start the gateway:
//
//	slashbot serve
//
// Run a registered tool directly:
//
//	slashbot tool run web.search '{"query":"weather"}'
//
// Check kernel health:
//
//	slashbot health
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
// Separated from main() to facilitate testing.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "slashbot",
		Short: "Slashbot - local-first, plugin-extensible assistant host",
		Long: `Slashbot hosts a plugin-extensible assistant kernel: a tool/command
registry, a hook dispatcher, prompt assembly, and a Bearer-authed gateway,
plus bundled Telegram and Discord connector plugins.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildServeCmd(),
		buildHealthCmd(),
		buildPluginsCmd(),
		buildToolCmd(),
		buildCommandCmd(),
		buildAuthCmd(),
	)

	return rootCmd
}
