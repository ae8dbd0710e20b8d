// Package main provides the CLI entry point for the knowsee agent gateway.
//
// knowsee fronts a Gemini-backed agent with session persistence, an SSE
// stream for live output, and side-channel tagging that lets the frontend
// render sources, analyst queries, and widgets separately from prose.
//
// # Basic Usage
//
// Start the server:
//
//	knowsee serve --config knowsee.yaml
//
// # Environment Variables
//
//   - GOOGLE_API_KEY: Gemini API key
//   - KNOWSEE_CONFIG: Path to configuration file (default: knowsee.yaml)
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
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "knowsee",
		Short: "knowsee - LLM agent gateway",
		Long: `knowsee serves a Gemini-backed agent over HTTP with live event
streaming, per-team retrieval corpora, and file uploads.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildServeCmd(),
		buildSyncCmd(),
	)
	return rootCmd
}

func buildServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the knowsee gateway server",
		Long: `Start the gateway server.

The server will:
1. Load configuration from the specified file (or knowsee.yaml)
2. Connect to PostgreSQL for sessions and corpus bookkeeping
3. Initialize the Gemini client and artifact store
4. Start the HTTP API, SSE stream, and sync scheduler

Graceful shutdown is handled on SIGINT/SIGTERM signals.`,
		Example: `  # Start with default config
  knowsee serve

  # Start with custom config
  knowsee serve --config /etc/knowsee/production.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), resolveConfigPath(configPath), debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "knowsee.yaml",
		"Path to YAML configuration file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false,
		"Enable debug logging (verbose output)")
	return cmd
}

func buildSyncCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one full corpus sync and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd.Context(), resolveConfigPath(configPath))
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "knowsee.yaml",
		"Path to YAML configuration file")
	return cmd
}

// resolveConfigPath prefers the flag, then KNOWSEE_CONFIG, then the
// flag's default.
func resolveConfigPath(flagValue string) string {
	if flagValue != "knowsee.yaml" {
		return flagValue
	}
	if env := os.Getenv("KNOWSEE_CONFIG"); env != "" {
		return env
	}
	return flagValue
}
