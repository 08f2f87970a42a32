// Package config loads CLI configuration from an optional YAML file.
// The core store takes its settings as explicit arguments; this exists
// for the command-line consumer only.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/stratadb/strata/internal/model"
)

// Config holds the settings the CLI feeds into the store.
type Config struct {
	// Database is the SQLite file path.
	Database string `yaml:"database"`

	// TablePrefix prefixes every entity table name.
	TablePrefix string `yaml:"table_prefix"`

	// MaxRetries bounds versioned-insert conflict retries. Zero is
	// legal and disables retrying.
	MaxRetries int `yaml:"max_retries"`

	// ForeignKeys declares the relation columns required on every
	// insert. These become table columns, so they are developer
	// configuration, not end-user input.
	ForeignKeys []string `yaml:"foreign_keys"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Database:    "strata.db",
		TablePrefix: model.DefaultTablePrefix,
		MaxRetries:  model.DefaultMaxRetries,
	}
}

// Load reads the YAML file at path over the defaults. A missing file
// is not an error: defaults are returned as-is. Fields omitted from
// the file keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Database == "" {
		return Config{}, fmt.Errorf("config %s: database must not be empty", path)
	}
	if cfg.MaxRetries < 0 {
		return Config{}, fmt.Errorf("config %s: max_retries must not be negative", path)
	}
	return cfg, nil
}
