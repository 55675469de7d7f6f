// Package logger builds zerolog loggers from configuration.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Config controls logger construction.
type Config struct {
	// Level is the minimum level: trace, debug, info, warn, error.
	Level string `mapstructure:"level"`
	// Format is "json" or "console".
	Format string `mapstructure:"format"`
	// Output is "stderr" or "stdout".
	Output string `mapstructure:"output"`
}

// Default returns an info-level console logger config.
func Default() Config {
	return Config{Level: "info", Format: "console", Output: "stderr"}
}

// New builds a logger from cfg. Unknown values fall back to the defaults.
func New(cfg Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	var out io.Writer = os.Stderr
	if cfg.Output == "stdout" {
		out = os.Stdout
	}
	if strings.ToLower(cfg.Format) == "console" {
		out = zerolog.ConsoleWriter{Out: out}
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
