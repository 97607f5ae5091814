package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/gantry-sh/gantry/config"
	"github.com/gantry-sh/gantry/errors"
	"github.com/gantry-sh/gantry/host"
	"github.com/gantry-sh/gantry/logger"
)

// RunCmd starts the plugin host and blocks until interrupted.
var RunCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the plugin host",
	Long: `Discover, register and start all configured plugins, then run
until interrupted. Plugins are stopped in reverse kind order on
shutdown.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		// Re-initialize with the configured encoding.
		if err := logger.Initialize(cfg.Logging.JSON); err != nil {
			return errors.Wrap(err, "failed to initialize logger")
		}

		h, err := host.New(cfg)
		if err != nil {
			return err
		}
		return h.Run(context.Background())
	},
}

func init() {
	RunCmd.Flags().StringP("config", "c", "", "Path to a gantry.toml config file")
}

// loadConfig reads configuration from the --config flag path when given,
// otherwise from the standard search paths.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}
