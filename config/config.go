// Package config loads the transfer configuration surface from a config
// file, environment, and defaults.
package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/backflow/backflow/flow"
	"github.com/backflow/backflow/logger"
)

// Transfer modes.
const (
	ModeManual = "manual"
	ModeAuto   = "auto"
)

// Config is the full configuration surface consumed by the CLI driver and
// the core.
type Config struct {
	// Mode selects the bridge strategy: "manual" or "auto".
	Mode string `mapstructure:"mode"`
	// Input and Output are the file paths of the transfer endpoints.
	Input  string `mapstructure:"input"`
	Output string `mapstructure:"output"`
	// ChunkSize is the source read granularity in bytes.
	ChunkSize int `mapstructure:"chunk_size"`
	// HighWater is the sink saturation threshold in bytes.
	HighWater int64 `mapstructure:"high_water"`
	// LowWater is the sink drain threshold in bytes; 0 means equal to
	// HighWater.
	LowWater int64 `mapstructure:"low_water"`
	// LatencyMS enables the latency stage with the given per-chunk delay
	// when greater than zero.
	LatencyMS int `mapstructure:"latency_ms"`
	// Compress interposes an LZ4 compress/decompress stage pair.
	Compress bool `mapstructure:"compress"`

	Log logger.Config `mapstructure:"log"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		Mode:      ModeAuto,
		ChunkSize: flow.DefaultChunkSize,
		HighWater: flow.DefaultHighWater,
		Log:       logger.Default(),
	}
}

// Load reads configuration from an optional YAML file plus BACKFLOW_*
// environment variables layered over the defaults. A .env file in the
// working directory is honored when present.
func Load(path string) (*Config, error) {
	// Best effort; a missing .env is not an error.
	_ = godotenv.Load()

	v := viper.New()
	def := Default()
	v.SetDefault("mode", def.Mode)
	v.SetDefault("input", def.Input)
	v.SetDefault("output", def.Output)
	v.SetDefault("chunk_size", def.ChunkSize)
	v.SetDefault("high_water", def.HighWater)
	v.SetDefault("low_water", def.LowWater)
	v.SetDefault("latency_ms", def.LatencyMS)
	v.SetDefault("compress", def.Compress)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.format", def.Log.Format)
	v.SetDefault("log.output", def.Log.Output)

	v.SetEnvPrefix("BACKFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "reading config %s", path)
		}
	} else if _, err := os.Stat("backflow.yml"); err == nil {
		v.SetConfigFile("backflow.yml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, "reading backflow.yml")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshaling config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration invariants.
func (c *Config) Validate() error {
	if c.Mode != ModeManual && c.Mode != ModeAuto {
		return errors.Errorf("invalid mode %q: want %q or %q", c.Mode, ModeManual, ModeAuto)
	}
	if c.ChunkSize <= 0 {
		return errors.New("chunk_size must be positive")
	}
	if c.HighWater <= 0 {
		return errors.New("high_water must be positive")
	}
	if c.LowWater < 0 {
		return errors.New("low_water must not be negative")
	}
	if c.LowWater > c.HighWater {
		return errors.Errorf("low_water %d exceeds high_water %d", c.LowWater, c.HighWater)
	}
	if c.LatencyMS < 0 {
		return errors.New("latency_ms must not be negative")
	}
	return nil
}

// SinkConfig converts the capacity settings to a flow.SinkConfig.
func (c *Config) SinkConfig() flow.SinkConfig {
	return flow.SinkConfig{HighWater: c.HighWater, LowWater: c.LowWater}
}
