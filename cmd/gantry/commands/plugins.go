package commands

import (
	"context"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/gantry-sh/gantry/logger"
	"github.com/gantry-sh/gantry/plugin/discovery"
)

// PluginsCmd lists every plugin the discovery strategies can find.
var PluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "List discoverable plugins",
	Long: `Run plugin discovery (builtin factories and manifest directory)
and print the candidates that would be registered, without starting
anything.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		group, _ := cmd.Flags().GetString("group")
		if group == "" {
			group = cfg.Plugins.Group
		}
		manifestDir, _ := cmd.Flags().GetString("manifest-dir")
		if manifestDir == "" && cfg.Plugins.EnableManifests {
			manifestDir = cfg.Plugins.ManifestDir
		}

		d := discovery.NewDiscoverer(group, manifestDir, logger.Named("discovery"))
		candidates, err := d.DiscoverAll(context.Background())
		if err != nil {
			return err
		}
		if len(candidates) == 0 {
			pterm.Warning.Printf("No plugins found (group %q, manifest dir %q)\n", group, manifestDir)
			return nil
		}

		data := pterm.TableData{{"NAME", "VERSION", "KIND", "STATE", "SOURCE"}}
		for _, c := range candidates {
			state := "enabled"
			if c.Disabled {
				state = "disabled"
			}
			data = append(data, []string{
				c.Plugin.Name(),
				c.Plugin.Version(),
				c.Plugin.Kind().String(),
				state,
				c.Source,
			})
		}
		if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
			return err
		}
		pterm.Success.Printf("%d plugin(s) discovered\n", len(candidates))
		return nil
	},
}

func init() {
	PluginsCmd.Flags().StringP("config", "c", "", "Path to a gantry.toml config file")
	PluginsCmd.Flags().String("group", "", "Builtin factory group to scan (default: configured group)")
	PluginsCmd.Flags().String("manifest-dir", "", "Manifest directory to scan (default: configured directory)")
}
