package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/gantry-sh/gantry/errors"
)

// Load reads the host configuration. Sources are merged in precedence
// order (lowest to highest): defaults, /etc/gantry/gantry.toml,
// ~/.gantry/gantry.toml, ./gantry.toml, then GANTRY_ environment
// variables.
func Load() (*Config, error) {
	return LoadWithViper(initViper())
}

// LoadWithViper unmarshals and validates configuration from a prepared
// Viper instance.
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromFile loads configuration from one explicit file, ignoring the
// usual search paths. Environment variables still apply.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	bindEnv(v)
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", path)
	}
	return LoadWithViper(v)
}

func initViper() *viper.Viper {
	v := viper.New()
	bindEnv(v)
	SetDefaults(v)
	mergeConfigFiles(v)
	return v
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("GANTRY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// mergeConfigFiles merges config files in precedence order (lowest to
// highest): system, user, project. Missing files are skipped silently.
// Files land in viper's config layer, so environment variables still
// win over every file.
func mergeConfigFiles(v *viper.Viper) {
	homeDir, _ := os.UserHomeDir()
	paths := []string{
		"/etc/gantry/gantry.toml",
		filepath.Join(homeDir, ".gantry", "gantry.toml"),
		"gantry.toml",
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		layer := viper.New()
		layer.SetConfigFile(path)
		layer.SetConfigType("toml")
		if err := layer.ReadInConfig(); err != nil {
			continue
		}
		if err := v.MergeConfigMap(layer.AllSettings()); err != nil {
			continue
		}
	}
}
