// Package config defines all configuration for the exchange server.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// fields overridable via SKOLL_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Feed    FeedConfig    `mapstructure:"feed"`
	Risk    RiskConfig    `mapstructure:"risk"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig holds the TCP order-entry gateway listen address.
type ServerConfig struct {
	Address string `mapstructure:"address"`
	Port    int    `mapstructure:"port"`
}

// FeedConfig controls the websocket market-data fan-out.
//
//   - Port: HTTP port serving the /ws endpoint.
//   - SnapshotInterval: how often L2 snapshots are broadcast.
//   - SnapshotDepth: levels per side in each broadcast snapshot.
type FeedConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	Port             int           `mapstructure:"port"`
	SnapshotInterval time.Duration `mapstructure:"snapshot_interval"`
	SnapshotDepth    int           `mapstructure:"snapshot_depth"`
}

// RiskConfig seeds the engine's risk gate.
// DefaultRateCredit is the per-user rate credit granted on first touch.
type RiskConfig struct {
	DefaultRateCredit uint64 `mapstructure:"default_rate_credit"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// Load reads configuration from the given path. A missing file is not an
// error; defaults and environment variables still apply.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.address", "0.0.0.0")
	v.SetDefault("server.port", 9001)
	v.SetDefault("feed.enabled", true)
	v.SetDefault("feed.port", 9002)
	v.SetDefault("feed.snapshot_interval", time.Second)
	v.SetDefault("feed.snapshot_depth", 10)
	v.SetDefault("risk.default_rate_credit", uint64(1_000_000_000))
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.pretty", false)

	v.SetEnvPrefix("SKOLL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	return &cfg, nil
}
