package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "0.0.0.0", cfg.Bind)
	assert.Equal(t, 4069, cfg.MaxRequestSize)
	assert.Zero(t, cfg.ReadTimeout)
	assert.Zero(t, cfg.WriteTimeout)
	assert.Zero(t, cfg.MaxWorkers)
	assert.Equal(t, int64(1), cfg.RetroSeed)
	assert.Equal(t, 95, cfg.JPEGQuality)
	assert.True(t, cfg.AutoOrient)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.MetricsAddr)
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
bind: 127.0.0.1
port: 9000
read_timeout: 30s
write_timeout: 1m
max_workers: 8
retro_seed: 42
jpeg_quality: 80
auto_orient: false
log_level: debug
metrics_addr: 127.0.0.1:9100
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Bind)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.ReadTimeout)
	assert.Equal(t, time.Minute, cfg.WriteTimeout)
	assert.Equal(t, 8, cfg.MaxWorkers)
	assert.Equal(t, int64(42), cfg.RetroSeed)
	assert.Equal(t, 80, cfg.JPEGQuality)
	assert.False(t, cfg.AutoOrient)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "127.0.0.1:9100", cfg.MetricsAddr)
	// Unset keys keep their defaults.
	assert.Equal(t, 4069, cfg.MaxRequestSize)

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "127.0.0.1:9000", cfg.Addr())
}

func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), *cfg)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "port: [not, a, number")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestPathFromEnv(t *testing.T) {
	t.Setenv(EnvConfigPath, "/etc/smartfilter.yaml")
	assert.Equal(t, "/etc/smartfilter.yaml", PathFromEnv())
}

func TestParsePort(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"9000", 9000, false},
		{"1", 1, false},
		{"65535", 65535, false},
		{"0", 0, true},
		{"65536", 0, true},
		{"-1", 0, true},
		{"abc", 0, true},
		{"", 0, true},
		{"90a", 0, true},
	}

	for _, tt := range tests {
		got, err := ParsePort(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidPort, "ParsePort(%q)", tt.in)
			continue
		}
		require.NoError(t, err, "ParsePort(%q)", tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg := Default()
		cfg.Port = 9000
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults with port", func(c *Config) {}, ""},
		{"empty bind", func(c *Config) { c.Bind = "" }, ""},
		{"missing port", func(c *Config) { c.Port = 0 }, "invalid port"},
		{"ipv6 bind", func(c *Config) { c.Bind = "::1" }, "not an IPv4 address"},
		{"hostname bind", func(c *Config) { c.Bind = "localhost" }, "not an IPv4 address"},
		{"zero request size", func(c *Config) { c.MaxRequestSize = 0 }, "max_request_size"},
		{"negative read timeout", func(c *Config) { c.ReadTimeout = -time.Second }, "read_timeout"},
		{"negative write timeout", func(c *Config) { c.WriteTimeout = -time.Second }, "write_timeout"},
		{"negative workers", func(c *Config) { c.MaxWorkers = -1 }, "max_workers"},
		{"jpeg quality", func(c *Config) { c.JPEGQuality = 0 }, "jpeg_quality"},
		{"log level", func(c *Config) { c.LogLevel = "verbose" }, "log_level"},
		{"log level case", func(c *Config) { c.LogLevel = "DEBUG" }, ""},
		{"metrics addr", func(c *Config) { c.MetricsAddr = "9100" }, "metrics_addr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	cfg := Default()
	cfg.MaxWorkers = -1
	cfg.JPEGQuality = 500

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid port")
	assert.Contains(t, err.Error(), "max_workers")
	assert.Contains(t, err.Error(), "jpeg_quality")
}
