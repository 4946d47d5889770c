// Package config provides unified configuration loading for emurun.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/voxelgraph/emurun/internal/graph"
	"github.com/voxelgraph/emurun/internal/policy"
)

// DefaultFileName is the config file looked up under the project root.
const DefaultFileName = "emurun.yaml"

// Config contains all emurun settings.
type Config struct {
	// MaxWorkers bounds the scheduler pool's concurrency.
	MaxWorkers int `json:"max_workers" yaml:"max_workers" validate:"gte=1"`

	// SnapshotDir is where the snapshot store keeps its database.
	SnapshotDir string `json:"snapshot_dir" yaml:"snapshot_dir" validate:"required"`

	// SnapshotRetention caps how many snapshots are kept. Zero keeps all.
	SnapshotRetention int `json:"snapshot_retention" yaml:"snapshot_retention" validate:"gte=0"`

	// Shards is the number of per-tick shard work units. Zero derives it
	// from MaxWorkers.
	Shards int `json:"shards" yaml:"shards" validate:"gte=0"`

	// Graph configures the graph builder.
	Graph graph.Config `json:"graph" yaml:"graph"`

	// Policy bounds what the default validator accepts.
	Policy policy.Limits `json:"policy" yaml:"policy"`

	// Logging configures log verbosity.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// LoggingConfig configures emurun's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	Level string `json:"level" yaml:"level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		MaxWorkers:  4,
		SnapshotDir: filepath.Join(".emurun", "snapshots"),
		Graph:       graph.DefaultConfig(),
		Policy:      policy.DefaultLimits(),
		Logging:     LoggingConfig{Level: "info"},
	}
}

// Load reads the configuration for a project root: defaults, overlaid by
// emurun.yaml when present, overlaid by EMURUN_* environment variables.
func Load(root string) (Config, error) {
	cfg := Default()

	path := filepath.Join(root, DefaultFileName)
	if raw, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	applyEnv(&cfg)

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the structural constraints on a configuration.
func Validate(cfg Config) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if cfg.Graph.Threshold < 0 {
		return fmt.Errorf("config: graph.threshold must be non-negative, got %g", cfg.Graph.Threshold)
	}
	if cfg.Graph.MaxEdges < 0 {
		return fmt.Errorf("config: graph.max_edges must be non-negative, got %d", cfg.Graph.MaxEdges)
	}
	return nil
}

// applyEnv overlays EMURUN_* environment variables.
func applyEnv(cfg *Config) {
	if v := os.Getenv("EMURUN_MAX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxWorkers = n
		}
	}
	if v := os.Getenv("EMURUN_SNAPSHOT_DIR"); v != "" {
		cfg.SnapshotDir = v
	}
	if v := os.Getenv("EMURUN_SNAPSHOT_RETENTION"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SnapshotRetention = n
		}
	}
	if v := os.Getenv("EMURUN_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
