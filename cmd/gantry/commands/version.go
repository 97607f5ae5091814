package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gantry-sh/gantry/plugin"
	"github.com/gantry-sh/gantry/version"
)

// VersionCmd prints build provenance plus the plugin API version the
// host speaks, so operators can check manifest compatibility at a glance.
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show gantry build information",
	RunE: func(cmd *cobra.Command, _ []string) error {
		info := version.Get()

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			out, err := json.MarshalIndent(struct {
				version.Info
				PluginAPI string `json:"plugin_api"`
			}{info, plugin.CurrentAPIVersion}, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		}

		fmt.Fprintln(cmd.OutOrStdout(), info.String())
		fmt.Fprintf(cmd.OutOrStdout(), "plugin api: %s\n", plugin.CurrentAPIVersion)
		fmt.Fprintf(cmd.OutOrStdout(), "go:         %s (%s)\n", info.GoVersion, info.Platform)
		return nil
	},
}

func init() {
	VersionCmd.Flags().Bool("json", false, "render as JSON")
}
