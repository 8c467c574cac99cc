// Package config loads the rechtskern configuration file and applies
// environment overrides. Missing file means defaults; a malformed file is an
// error.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the process configuration.
type Config struct {
	// DatabasePath points at the read-only corpus sqlite file. When the file
	// does not exist adapters fall back to seed data.
	DatabasePath string `json:"database_path"`

	// SeedFallback enables the embedded seed corpus when the database file is
	// absent. Default true.
	SeedFallback *bool `json:"seed_fallback,omitempty"`

	Logging   LoggingConfig   `json:"logging"`
	Ingestion IngestionConfig `json:"ingestion"`
}

// LoggingConfig mirrors the knobs of internal/logging.
type LoggingConfig struct {
	Debug      bool            `json:"debug"`
	Dir        string          `json:"dir,omitempty"`
	Categories map[string]bool `json:"categories,omitempty"`
}

// IngestionConfig describes the external ingestion collaborator.
type IngestionConfig struct {
	// Command is the executable invoked by run_ingestion. Empty disables
	// ingestion (runs report zero counts).
	Command string   `json:"command,omitempty"`
	Args    []string `json:"args,omitempty"`

	// TimeoutSeconds bounds a run; expiry surfaces a zeroed report.
	TimeoutSeconds int `json:"timeout_seconds,omitempty"`
}

// Timeout returns the ingestion deadline.
func (c IngestionConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SeedEnabled reports whether seed fallback is on (default true).
func (c *Config) SeedEnabled() bool {
	return c.SeedFallback == nil || *c.SeedFallback
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DatabasePath: "data/german_law.sqlite3",
		Logging:      LoggingConfig{Dir: "."},
	}
}

// Load reads path (when non-empty and present), then applies environment
// overrides. A missing file yields defaults, not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// defaults
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	applyEnv(cfg)
	if cfg.Logging.Dir == "" {
		cfg.Logging.Dir = "."
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("RECHTSKERN_DB"); v != "" {
		cfg.DatabasePath = v
	}
	if v := os.Getenv("RECHTSKERN_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Logging.Debug = b
		}
	}
	if v := os.Getenv("RECHTSKERN_INGEST_CMD"); v != "" {
		cfg.Ingestion.Command = v
	}
}
