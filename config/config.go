// Package config loads docstore settings from a config file, DOCSTORE_*
// environment variables and command-line flags, in increasing precedence.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. DOCSTORE_BACKEND
// or DOCSTORE_LOG_LEVEL.
const EnvPrefix = "DOCSTORE"

// Config holds everything needed to open a store from the command line.
type Config struct {
	Backend      string `mapstructure:"backend"`
	DataDir      string `mapstructure:"data_dir"`
	Strict       bool   `mapstructure:"strict"`
	LegacyExists bool   `mapstructure:"legacy_exists"`
	Log          Log    `mapstructure:"log"`
}

// Log configures the zap logger.
type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var defaults = map[string]any{
	"backend":       "json",
	"data_dir":      "./data",
	"strict":        false,
	"legacy_exists": false,
	"log.level":     "warn",
	"log.format":    "console",
}

// flagKeys maps flag names to config keys.
var flagKeys = map[string]string{
	"backend":       "backend",
	"data-dir":      "data_dir",
	"strict":        "strict",
	"legacy-exists": "legacy_exists",
	"log-level":     "log.level",
	"log-format":    "log.format",
}

// Load reads file (optional; any format viper understands), then the
// environment, then the flags in fs that were set explicitly.
func Load(file string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", file, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, err
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}
