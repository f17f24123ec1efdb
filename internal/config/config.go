// Package config loads the SmartFilter server configuration.
//
// Configuration comes from three layers, later layers winning:
//
//  1. Built-in defaults (Default)
//  2. An optional YAML file (Load)
//  3. Command line flags, applied by the caller
//
// Validate must be called once all layers are applied.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable holding the config file path.
const EnvConfigPath = "SMARTFILTER_CONFIG"

// ErrInvalidPort is returned for a port that is not a number in 1-65535.
var ErrInvalidPort = errors.New("invalid port")

// Config is the complete server configuration.
type Config struct {
	// Bind is the IPv4 address to listen on. Empty or "0.0.0.0" listens on
	// all interfaces.
	Bind string `yaml:"bind"`

	// Port is the TCP port to listen on. It is normally given on the command
	// line.
	Port int `yaml:"port"`

	// MaxRequestSize bounds the single read that carries a request.
	MaxRequestSize int `yaml:"max_request_size"`

	// ReadTimeout and WriteTimeout bound the request read and the reply
	// write. Zero disables the deadline, which is the default.
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// MaxWorkers bounds how many requests may load, transform and save
	// images at once. Zero means no bound.
	MaxWorkers int `yaml:"max_workers"`

	// RetroSeed seeds the grain of the Retro variant.
	RetroSeed int64 `yaml:"retro_seed"`

	// JPEGQuality is used when an output path ends in .jpg or .jpeg.
	JPEGQuality int `yaml:"jpeg_quality"`

	// AutoOrient applies the EXIF orientation tag when decoding inputs.
	AutoOrient bool `yaml:"auto_orient"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// MetricsAddr is the host:port for the Prometheus endpoint. Empty
	// disables it.
	MetricsAddr string `yaml:"metrics_addr"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Bind:           "0.0.0.0",
		MaxRequestSize: 4069,
		RetroSeed:      1,
		JPEGQuality:    95,
		AutoOrient:     true,
		LogLevel:       "info",
	}
}

// Load reads the YAML file at path over the defaults. An empty path returns
// the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return &cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return &cfg, nil
}

// PathFromEnv returns the config file path from the environment, or "".
func PathFromEnv() string {
	return os.Getenv(EnvConfigPath)
}

// ParsePort parses a port argument. Unlike the wire protocol's variant
// field, garbage is rejected rather than coerced.
func ParsePort(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w %q: not a number", ErrInvalidPort, s)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("%w %d: must be between 1 and 65535", ErrInvalidPort, port)
	}
	return port, nil
}

// Addr returns the listen address in host:port form.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Bind, strconv.Itoa(c.Port))
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	var errs []error

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("%w %d: must be between 1 and 65535", ErrInvalidPort, c.Port))
	}
	if c.Bind != "" {
		if ip := net.ParseIP(c.Bind); ip == nil || ip.To4() == nil {
			errs = append(errs, fmt.Errorf("bind %q is not an IPv4 address", c.Bind))
		}
	}
	if c.MaxRequestSize < 1 {
		errs = append(errs, fmt.Errorf("max_request_size must be positive, got %d", c.MaxRequestSize))
	}
	if c.ReadTimeout < 0 {
		errs = append(errs, fmt.Errorf("read_timeout must not be negative, got %s", c.ReadTimeout))
	}
	if c.WriteTimeout < 0 {
		errs = append(errs, fmt.Errorf("write_timeout must not be negative, got %s", c.WriteTimeout))
	}
	if c.MaxWorkers < 0 {
		errs = append(errs, fmt.Errorf("max_workers must not be negative, got %d", c.MaxWorkers))
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		errs = append(errs, fmt.Errorf("jpeg_quality must be between 1 and 100, got %d", c.JPEGQuality))
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level must be one of debug, info, warn, error, got %q", c.LogLevel))
	}
	if c.MetricsAddr != "" {
		if _, _, err := net.SplitHostPort(c.MetricsAddr); err != nil {
			errs = append(errs, fmt.Errorf("metrics_addr %q: %w", c.MetricsAddr, err))
		}
	}

	return errors.Join(errs...)
}
