package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gantry-sh/gantry/cmd/gantry/commands"
	"github.com/gantry-sh/gantry/logger"

	// Builtin plugins register themselves with the discovery table.
	_ "github.com/gantry-sh/gantry/plugins/csvexport"
	_ "github.com/gantry-sh/gantry/plugins/eventlog"
)

var rootCmd = &cobra.Command{
	Use:   "gantry",
	Short: "Gantry - plugin lifecycle and registry host",
	Long: `Gantry hosts pluggable extensions behind a registry with ordered
lifecycle management, manifest-based discovery, and declarative
security policies.

Available commands:
  run      - Start the plugin host and run until interrupted
  plugins  - List discoverable plugins
  version  - Show version information

Examples:
  gantry run                          # Start with config from gantry.toml
  gantry run --config /etc/gantry.toml
  gantry plugins --manifest-dir plugins.d`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// The run command re-initializes with the configured encoding.
		if err := logger.Initialize(false); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(commands.RunCmd)
	rootCmd.AddCommand(commands.PluginsCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	defer logger.Cleanup()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
