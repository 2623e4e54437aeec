package main

import (
	"github.com/spf13/cobra"
)

const defaultConfigPath = "teleton.yaml"

// buildServeCmd creates the "serve" command.
func buildServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Teleton agent kernel",
		Long: `Start the Teleton agent kernel with its configured store, LLM
provider, chat bridge, tool registry, cron scheduler, and control
plane.

The kernel will:
1. Load configuration from the specified file (or teleton.yaml)
2. Open the embedded SQLite store and apply migrations
3. Construct the LLM client, tool registry, tool index, and memory system
4. Start the enabled chat bridge and cron jobs under a lifecycle supervisor
5. Serve the JSON control plane over HTTP

Graceful shutdown is handled on SIGINT/SIGTERM signals.`,
		Example: `  # Start with default config
  teleton serve

  # Start with custom config
  teleton serve --config /etc/teleton/production.yaml

  # Start with debug logging
  teleton serve --debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, debug)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to YAML configuration file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	return cmd
}

// buildMigrateCmd creates the "migrate" command. Store.Open applies
// migrations automatically, so this command exists for deploy scripts
// that want to pre-flight a database before starting the kernel
// proper, without standing up the rest of the runtime.
func buildMigrateCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Open the store and apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context(), cmd, configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to YAML configuration file")
	return cmd
}

// buildStatusCmd creates the "status" command.
func buildStatusCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report the configured store and bridge without starting the kernel",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), cmd, configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to YAML configuration file")
	return cmd
}
