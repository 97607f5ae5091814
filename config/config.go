// Package config holds the host configuration, loaded from TOML files
// and GANTRY_-prefixed environment variables via Viper.
package config

// Config is the top-level host configuration.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging"`
	Plugins   PluginsConfig   `mapstructure:"plugins"`
	Security  SecurityConfig  `mapstructure:"security"`
	Lifecycle LifecycleConfig `mapstructure:"lifecycle"`
}

// LoggingConfig controls the global logger.
type LoggingConfig struct {
	JSON  bool   `mapstructure:"json"`  // structured JSON output instead of console encoding
	Level string `mapstructure:"level"` // debug, info, warn, error (empty = info)
}

// PluginsConfig controls plugin discovery and registration.
type PluginsConfig struct {
	Group           string   `mapstructure:"group"`            // builtin factory group to load
	ManifestDir     string   `mapstructure:"manifest_dir"`     // directory scanned for *.toml manifests
	EnableBuiltins  bool     `mapstructure:"enable_builtins"`  // discover in-process builtin plugins
	EnableManifests bool     `mapstructure:"enable_manifests"` // scan the manifest directory
	WatchManifests  bool     `mapstructure:"watch_manifests"`  // hot-load manifests added at runtime
	Permissions     []string `mapstructure:"permissions"`      // permissions granted to the base execution context
	TenantID        string   `mapstructure:"tenant_id"`
	Environment     string   `mapstructure:"environment"` // production, staging, development
}

// SecurityConfig controls sandbox policies and signature verification.
type SecurityConfig struct {
	PolicyLevel       string   `mapstructure:"policy_level"`       // unrestricted, standard, strict
	RequireSignatures bool     `mapstructure:"require_signatures"` // unverifiable plugins are rejected
	TrustedKeyFiles   []string `mapstructure:"trusted_key_files"`  // PEM files holding trusted public keys
}

// LifecycleConfig controls bulk lifecycle behavior.
type LifecycleConfig struct {
	StopTimeoutSeconds int  `mapstructure:"stop_timeout_seconds"` // per-plugin stop deadline during shutdown
	FailFast           bool `mapstructure:"fail_fast"`            // abort startup on the first plugin failure
}
