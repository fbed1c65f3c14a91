package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultListen       = "127.0.0.1:8470"
	defaultPollInterval = 5 * time.Second
	defaultSampleCount  = 5
)

// Config holds the process-level settings.
// The watched endpoint itself is not configured here:
// it lives in the settings database so it survives restarts,
// and the --endpoint flag overrides it explicitly.
type Config struct {
	// Listen is the HTTP status server address.
	Listen string `yaml:"listen"`

	// DBPath is the SQLite settings database.
	// Empty means settings are kept in memory only.
	DBPath string `yaml:"db_path"`

	// PollIntervalSec is the seconds between polls.
	PollIntervalSec int `yaml:"poll_interval_sec"`

	// SampleCount is how many recent samples to request per poll.
	SampleCount int `yaml:"sample_count"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Listen:          defaultListen,
		PollIntervalSec: int(defaultPollInterval / time.Second),
		SampleCount:     defaultSampleCount,
	}
}

// LoadConfig reads and parses a YAML config file,
// filling unset fields from the defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %q: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %q: %w", path, err)
	}

	if cfg.PollIntervalSec <= 0 {
		return Config{}, fmt.Errorf("config %q: poll_interval_sec must be positive", path)
	}
	if cfg.SampleCount <= 0 {
		return Config{}, fmt.Errorf("config %q: sample_count must be positive", path)
	}

	return cfg, nil
}

// PollInterval returns the poll cadence as a duration.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSec) * time.Second
}
