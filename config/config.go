// Package config loads run configuration. The sibling-feature toggles
// (incremental sync, external type mapping) are parsed here and passed
// through to the subsystems that own them; the translation core never
// reads them.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Config is the YAML run configuration.
type Config struct {
	// IncrementalSync switches row extraction to checkpoint-based
	// predicates and row emission to upsert form. Owned by the sync
	// subsystem.
	IncrementalSync bool `yaml:"incremental_sync"`

	// UseExternalTypeMap enables the JSON-backed type mapping overrides.
	UseExternalTypeMap bool `yaml:"use_external_type_map"`

	// ExternalTypeMap is the path of the JSON override table consulted
	// during column translation, when enabled.
	ExternalTypeMap string `yaml:"external_type_map"`

	// Concurrency bounds parallel package translation. 0 disables
	// parallelism, negative means unlimited.
	Concurrency int `yaml:"concurrency"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{}
}

// Load reads a YAML configuration file.
func Load(path string) (*Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := yaml.UnmarshalStrict(buf, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
