package config

import "github.com/spf13/viper"

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	// Logging defaults
	v.SetDefault("logging.json", false)
	v.SetDefault("logging.level", "info")

	// Plugin discovery defaults
	v.SetDefault("plugins.group", "gantry")
	v.SetDefault("plugins.manifest_dir", "plugins.d")
	v.SetDefault("plugins.enable_builtins", true)
	v.SetDefault("plugins.enable_manifests", true)
	v.SetDefault("plugins.watch_manifests", false)
	v.SetDefault("plugins.permissions", []string{})
	v.SetDefault("plugins.environment", "production")

	// Security defaults
	v.SetDefault("security.policy_level", "standard")
	v.SetDefault("security.require_signatures", false)
	v.SetDefault("security.trusted_key_files", []string{})

	// Lifecycle defaults
	v.SetDefault("lifecycle.stop_timeout_seconds", 10)
	v.SetDefault("lifecycle.fail_fast", false)
}
