// Package models defines data structures shared across nameglass packages.
package models

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds runtime configuration. Values come from an optional YAML file
// and may be overridden by CLI flags.
type Config struct {
	// APIBase is the root of the remote lookup service, e.g. "https://api.github.com".
	APIBase string `yaml:"api_base"`

	// StorePath is the SQLite database location. Empty means the XDG data dir default.
	StorePath string `yaml:"store_path"`

	// BatchSize is the number of nodes dispatched per pipeline batch.
	BatchSize int `yaml:"batch_size"`

	// DebounceWindow collapses bursts of mutation notifications.
	DebounceWindow time.Duration `yaml:"-"`

	// RequestTimeout bounds a single remote lookup.
	RequestTimeout time.Duration `yaml:"-"`
}

// Defaults used when the config file is absent or a field is zero.
const (
	DefaultAPIBase        = "https://api.github.com"
	DefaultBatchSize      = 20
	DefaultDebounceWindow = 100 * time.Millisecond
	DefaultRequestTimeout = 10 * time.Second
)

// rawConfig carries durations as strings because yaml.v3 has no native
// time.Duration decoding.
type rawConfig struct {
	APIBase        string `yaml:"api_base"`
	StorePath      string `yaml:"store_path"`
	BatchSize      int    `yaml:"batch_size"`
	DebounceWindow string `yaml:"debounce_window"`
	RequestTimeout string `yaml:"request_timeout"`
}

// LoadConfig reads a YAML config file. A missing file is not an error; it
// yields a config with defaults applied.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyDefaults()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.APIBase = raw.APIBase
	cfg.StorePath = raw.StorePath
	cfg.BatchSize = raw.BatchSize
	if raw.DebounceWindow != "" {
		d, err := time.ParseDuration(raw.DebounceWindow)
		if err != nil {
			return nil, fmt.Errorf("invalid debounce_window: %w", err)
		}
		cfg.DebounceWindow = d
	}
	if raw.RequestTimeout != "" {
		d, err := time.ParseDuration(raw.RequestTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid request_timeout: %w", err)
		}
		cfg.RequestTimeout = d
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.APIBase == "" {
		c.APIBase = DefaultAPIBase
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.DebounceWindow <= 0 {
		c.DebounceWindow = DefaultDebounceWindow
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
}
