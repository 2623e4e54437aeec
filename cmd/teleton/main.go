// Package main provides the CLI entry point for the Teleton agent kernel.
//
// Teleton runs a single personal AI agent: one SQLite-backed store, one
// LLM provider (Anthropic or OpenAI), a tool registry with hybrid
// search over its catalog, a cron scheduler, and a JSON control plane
// for starting, stopping, and observing the agent.
//
// # Basic Usage
//
// Start the kernel:
//
//	teleton serve --config teleton.yaml
//
// Check system status:
//
//	teleton status
//
// Apply database migrations (a no-op beyond reporting, since Open
// migrates automatically; useful for pre-flight checks in deploy
// scripts):
//
//	teleton migrate
//
// # Environment Variables
//
//   - TELETON_STORE_PATH, TELETON_SERVER_ADDR, TELETON_STATIC_DIR
//   - TELETON_JWT_SECRET, TELETON_LOGIN_TOKEN, TELETON_TOKEN_TTL
//   - ANTHROPIC_API_KEY, OPENAI_API_KEY, TELETON_LLM_PROVIDER
//   - TELEGRAM_BOT_TOKEN
//   - TELETON_MAX_TOOL_ITERATIONS, TELETON_LOG_LEVEL
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags during build.
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

// buildRootCmd creates the root command with all subcommands attached.
// Separated from main so tests can exercise it directly.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "teleton",
		Short: "Teleton - personal AI agent kernel",
		Long: `Teleton runs a single personal AI agent over one chat bridge,
backed by an embedded SQLite store, a tool registry with hybrid
search, a cron scheduler, and a JSON control plane.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildServeCmd(),
		buildMigrateCmd(),
		buildStatusCmd(),
	)

	return rootCmd
}
