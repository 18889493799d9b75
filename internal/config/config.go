// Package config loads the agora server configuration, layering
// defaults, AGORA_-prefixed environment variables and CLI flags via
// spf13/viper. No config file is read.
package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/teranos/agora/internal/errors"
)

// BrokerConfig configures the remote pub/sub transport connection.
type BrokerConfig struct {
	URL             string `mapstructure:"broker_url"`
	Username        string `mapstructure:"broker_username"`
	Password        string `mapstructure:"broker_password"`
	CAFile          string `mapstructure:"broker_ca"`
	ClientCA        string `mapstructure:"client_ca"`
	ClientKey       string `mapstructure:"client_private_key"`
	QoS             int    `mapstructure:"qos"`
	Implementation  string `mapstructure:"mqtt_implementation"`
}

// LoggingConfig configures the process-wide logger facade.
type LoggingConfig struct {
	MinLevel string `mapstructure:"min_log_level"`
	ToFile   bool   `mapstructure:"log_to_file"`
	FilePath string `mapstructure:"log_file"`
}

// Config is the full agora-server configuration, bound directly from
// CLI flags in cmd/agora-server.
type Config struct {
	WorkspaceDirectory    string `mapstructure:"workspace_directory"`
	PluginDirectory       string `mapstructure:"plugin_directory"`
	ModelsDirectory       string `mapstructure:"models_directory"`
	StorageImplementation string `mapstructure:"storage_implementation"`
	NumThreads            int    `mapstructure:"num_threads"`

	Broker  BrokerConfig  `mapstructure:"broker"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// Validate checks the required fields the spec's CLI surface mandates.
func (c *Config) Validate() error {
	if c.WorkspaceDirectory == "" {
		return errors.New("--workspace-directory is required")
	}
	if c.PluginDirectory == "" {
		return errors.New("--plugin-directory is required")
	}
	if c.ModelsDirectory == "" {
		return errors.New("--models-directory is required")
	}
	if c.StorageImplementation != "csv" {
		return errors.Newf("unsupported --storage-implementation %q (only \"csv\" is implemented)", c.StorageImplementation)
	}
	if c.Broker.Implementation != "paho" {
		return errors.Newf("unsupported --mqtt-implementation %q (only \"paho\" is implemented)", c.Broker.Implementation)
	}
	switch c.Broker.QoS {
	case 0, 1, 2:
	default:
		return errors.Newf("invalid --qos %d (must be 0, 1 or 2)", c.Broker.QoS)
	}
	switch LevelFromString(c.Logging.MinLevel) {
	case "":
		return errors.Newf("invalid --min-log-level %q", c.Logging.MinLevel)
	}
	if c.NumThreads <= 0 {
		return errors.New("--num-threads must be positive")
	}
	return nil
}

// LevelFromString normalizes a --min-log-level value, returning "" if it
// is not one of the five recognized values.
func LevelFromString(s string) string {
	switch strings.ToLower(s) {
	case "disabled", "warning", "info", "pedantic", "debug":
		return strings.ToLower(s)
	default:
		return ""
	}
}

// Defaults mirrors the teacher's am.SetDefaults: one place that documents
// every flag's fallback value before CLI/env/file overrides apply.
func Defaults(v *viper.Viper) {
	v.SetDefault("num_threads", 3)
	v.SetDefault("storage_implementation", "csv")
	v.SetDefault("broker.mqtt_implementation", "paho")
	v.SetDefault("broker.qos", 2)
	v.SetDefault("logging.min_log_level", "info")
}

// Load builds a Config from an initialized viper instance (flags already
// bound by the caller via BindPFlags), applying defaults first so unset
// flags fall back to the documented value.
func Load(v *viper.Viper) (*Config, error) {
	Defaults(v)

	v.SetEnvPrefix("AGORA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal agora configuration")
	}
	return &cfg, nil
}
