// Package config loads riskmap settings from an optional YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Boundary file layouts under the data directory.
const (
	BoundaryYearly = "yearly"
	BoundaryFixed  = "fixed"
)

// Config holds all settings. YAML keys mirror the environment variables.
type Config struct {
	DataDir      string `yaml:"data_dir"`
	BoundaryMode string `yaml:"boundary_mode"`
	// BoundaryFile overrides the fixed-mode file name.
	BoundaryFile string `yaml:"boundary_file"`
	MeanField    string `yaml:"mean_field"`

	HTTPAddr        string        `yaml:"http_addr"`
	LogLevel        string        `yaml:"log_level"`
	LogFormat       string        `yaml:"log_format"`
	LogFile         string        `yaml:"log_file"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		DataDir:         "data",
		BoundaryMode:    BoundaryYearly,
		BoundaryFile:    "kreise_germany_simplified_500.geojson",
		MeanField:       "r_mean_b17",
		HTTPAddr:        ":8080",
		LogLevel:        "info",
		LogFormat:       "json",
		ShutdownTimeout: 10 * time.Second,
	}
}

// Load applies defaults, then the YAML file named by RISKMAP_CONFIG (if any),
// then environment overrides.
func Load() (*Config, error) {
	cfg := Default()
	if path := os.Getenv("RISKMAP_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.DataDir = EnvOrDefault("RISKMAP_DATA_DIR", cfg.DataDir)
	cfg.BoundaryMode = strings.ToLower(EnvOrDefault("RISKMAP_BOUNDARY_MODE", cfg.BoundaryMode))
	cfg.BoundaryFile = EnvOrDefault("RISKMAP_BOUNDARY_FILE", cfg.BoundaryFile)
	cfg.MeanField = EnvOrDefault("RISKMAP_MEAN_FIELD", cfg.MeanField)
	cfg.HTTPAddr = EnvOrDefault("HTTP_ADDR", cfg.HTTPAddr)
	cfg.LogLevel = EnvOrDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = EnvOrDefault("LOG_FORMAT", cfg.LogFormat)
	cfg.LogFile = EnvOrDefault("LOG_FILE", cfg.LogFile)

	if s := os.Getenv("SHUTDOWN_TIMEOUT"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
		}
		cfg.ShutdownTimeout = d
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile merges the YAML file at path. A missing file leaves the defaults.
func (c *Config) loadFile(path string) error {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) validate() error {
	if c.DataDir == "" {
		return errors.New("RISKMAP_DATA_DIR is required")
	}
	switch c.BoundaryMode {
	case BoundaryYearly, BoundaryFixed:
	default:
		return fmt.Errorf("invalid RISKMAP_BOUNDARY_MODE %q: want %s or %s", c.BoundaryMode, BoundaryYearly, BoundaryFixed)
	}
	if c.BoundaryMode == BoundaryFixed && c.BoundaryFile == "" {
		return errors.New("RISKMAP_BOUNDARY_FILE is required in fixed boundary mode")
	}
	if c.MeanField == "" {
		return errors.New("RISKMAP_MEAN_FIELD is required")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid LOG_LEVEL %q", c.LogLevel)
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		return fmt.Errorf("invalid LOG_FORMAT %q", c.LogFormat)
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("invalid SHUTDOWN_TIMEOUT: must be positive")
	}
	return nil
}

// EnvOrDefault returns the value of key, or def when it is unset or empty.
func EnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
