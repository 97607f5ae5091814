package config

import (
	"time"

	"github.com/gantry-sh/gantry/errors"
	"github.com/gantry-sh/gantry/plugin/security"
)

var environments = map[string]bool{
	"production":  true,
	"staging":     true,
	"development": true,
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return errors.Newf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}

	if c.Plugins.Group == "" {
		return errors.New("plugins.group cannot be empty")
	}
	if c.Plugins.EnableManifests && c.Plugins.ManifestDir == "" {
		return errors.New("plugins.manifest_dir cannot be empty when manifests are enabled")
	}
	if c.Plugins.WatchManifests && !c.Plugins.EnableManifests {
		return errors.New("plugins.watch_manifests requires plugins.enable_manifests")
	}
	if c.Plugins.Environment != "" && !environments[c.Plugins.Environment] {
		return errors.Newf("plugins.environment must be production, staging or development, got %q", c.Plugins.Environment)
	}

	if _, err := security.ParseLevel(c.Security.PolicyLevel); err != nil {
		return err
	}

	if c.Lifecycle.StopTimeoutSeconds <= 0 {
		return errors.Newf("lifecycle.stop_timeout_seconds must be > 0, got %d", c.Lifecycle.StopTimeoutSeconds)
	}

	return nil
}

// StopTimeout returns the shutdown deadline as a duration.
func (c *Config) StopTimeout() time.Duration {
	return time.Duration(c.Lifecycle.StopTimeoutSeconds) * time.Second
}
