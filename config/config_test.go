package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backflow/backflow/flow"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ModeAuto, cfg.Mode)
	assert.Equal(t, flow.DefaultChunkSize, cfg.ChunkSize)
	assert.Equal(t, int64(flow.DefaultHighWater), cfg.HighWater)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "backflow.yml")
	yaml := `
mode: manual
chunk_size: 8192
high_water: 16384
low_water: 8192
latency_ms: 5
compress: true
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ModeManual, cfg.Mode)
	assert.Equal(t, 8192, cfg.ChunkSize)
	assert.Equal(t, int64(16384), cfg.HighWater)
	assert.Equal(t, int64(8192), cfg.LowWater)
	assert.Equal(t, 5, cfg.LatencyMS)
	assert.True(t, cfg.Compress)
	assert.Equal(t, "debug", cfg.Log.Level)

	sc := cfg.SinkConfig()
	assert.Equal(t, int64(16384), sc.HighWater)
	assert.Equal(t, int64(8192), sc.LowWater)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("BACKFLOW_MODE", "manual")
	t.Setenv("BACKFLOW_CHUNK_SIZE", "1024")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ModeManual, cfg.Mode)
	assert.Equal(t, 1024, cfg.ChunkSize)
}

func TestValidateRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad mode", func(c *Config) { c.Mode = "turbo" }},
		{"zero chunk", func(c *Config) { c.ChunkSize = 0 }},
		{"zero high water", func(c *Config) { c.HighWater = 0 }},
		{"negative low water", func(c *Config) { c.LowWater = -1 }},
		{"low above high", func(c *Config) { c.HighWater = 10; c.LowWater = 20 }},
		{"negative latency", func(c *Config) { c.LatencyMS = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}
