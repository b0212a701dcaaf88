// Package config loads geotrie configuration
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the full server configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Grid     GridConfig     `mapstructure:"grid"`
	Covering CoveringConfig `mapstructure:"covering"`
	Dataset  DatasetConfig  `mapstructure:"dataset"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig holds listen addresses
type ServerConfig struct {
	HTTPAddr    string `mapstructure:"http_addr"`
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// GridConfig selects the grid system and index depth
type GridConfig struct {
	System     string `mapstructure:"system"`      // s2 or geohash
	IndexLevel int    `mapstructure:"index_level"` // 0 uses the engine default
}

// CoveringConfig bounds region coverings
type CoveringConfig struct {
	MinLevel int `mapstructure:"min_level"`
	MaxLevel int `mapstructure:"max_level"` // 0 uses the grid default
	MaxCells int `mapstructure:"max_cells"`
}

// DatasetConfig points at the GeoJSON file loaded on startup
type DatasetConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig controls log output
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// Load reads configuration from defaults, an optional YAML file, and
// GEOTRIE_* environment variables, in increasing precedence.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("GEOTRIE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.metrics_addr", ":9090")
	v.SetDefault("grid.system", "s2")
	v.SetDefault("grid.index_level", 0)
	v.SetDefault("covering.min_level", 0)
	v.SetDefault("covering.max_level", 0)
	v.SetDefault("covering.max_cells", 16)
	v.SetDefault("dataset.path", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.pretty", false)
}

// Validate checks field values and cross-field constraints
func (c *Config) Validate() error {
	switch c.Grid.System {
	case "s2", "geohash":
	default:
		return fmt.Errorf("unknown grid system %q (expected s2 or geohash)", c.Grid.System)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Logging.Level)
	}
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr must not be empty")
	}
	if c.Grid.IndexLevel < 0 {
		return fmt.Errorf("grid.index_level must not be negative, got %d", c.Grid.IndexLevel)
	}
	if c.Covering.MinLevel < 0 {
		return fmt.Errorf("covering.min_level must not be negative, got %d", c.Covering.MinLevel)
	}
	if c.Covering.MaxLevel != 0 && c.Covering.MaxLevel < c.Covering.MinLevel {
		return fmt.Errorf("covering.max_level %d is below covering.min_level %d",
			c.Covering.MaxLevel, c.Covering.MinLevel)
	}
	if c.Covering.MaxCells < 1 {
		return fmt.Errorf("covering.max_cells must be at least 1, got %d", c.Covering.MaxCells)
	}
	return nil
}
