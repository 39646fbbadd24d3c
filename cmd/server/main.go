// Package main provides the CLI entry point for the challenge hub.
//
// Start the server:
//
//	challengehub serve --config challengehub.yaml
//
// Create the configured challenges and exit:
//
//	challengehub seed --config challengehub.yaml
//
// Settings in the file can be overridden with SERVER_PORT, ALLOWED_ORIGINS,
// MAX_MESSAGE_SIZE, RATE_LIMIT_BURST, RATE_LIMIT_REFILL_INTERVAL,
// HEARTBEAT_INTERVAL, STORAGE_DRIVER, STORAGE_PATH, LOG_LEVEL and LOG_FORMAT.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "challengehub",
		Short: "Real-time hub for collaborative challenge rooms",
		Long: `challengehub serves WebSocket rooms where challenge participants chat,
report progress and follow a live activity feed.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildServeCmd(),
		buildSeedCmd(),
		buildVersionCmd(),
	)
	return rootCmd
}

func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "challengehub %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}
