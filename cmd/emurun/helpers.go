package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/voxelgraph/emurun/internal/config"
	"github.com/voxelgraph/emurun/internal/logging"
	"github.com/voxelgraph/emurun/internal/metrics"
	"github.com/voxelgraph/emurun/internal/pathutil"
	"github.com/voxelgraph/emurun/internal/physics"
	"github.com/voxelgraph/emurun/internal/policy"
	"github.com/voxelgraph/emurun/internal/rules"
	"github.com/voxelgraph/emurun/internal/runtime"
	"github.com/voxelgraph/emurun/internal/sched"
	"github.com/voxelgraph/emurun/internal/shards"
	"github.com/voxelgraph/emurun/internal/snapshot"
)

// loadConfig reads the configuration for the command's --root.
func loadConfig(cmd *cobra.Command) (config.Config, string, error) {
	root, _ := cmd.Flags().GetString("root")
	cfg, err := config.Load(root)
	if err != nil {
		return config.Config{}, "", err
	}
	// A relative snapshot dir lives under the project root.
	cfg.SnapshotDir = pathutil.Anchor(root, cfg.SnapshotDir)
	return cfg, root, nil
}

// newLogger builds the process logger from config.
func newLogger(cfg config.Config) *slog.Logger {
	return logging.NewLogger(cfg.Logging.Level, os.Stderr)
}

// buildRuntime assembles a runtime with the built-in rule set and a SQLite
// snapshot store. The caller owns closing the returned store.
func buildRuntime(cfg config.Config, logger *slog.Logger, m *metrics.Metrics) (*runtime.Runtime, *snapshot.SQLiteStore, error) {
	store, err := snapshot.NewSQLiteStore(cfg.SnapshotDir)
	if err != nil {
		return nil, nil, err
	}

	validator := policy.NewLimitValidator(cfg.Policy)
	engine := rules.NewEngine(validator, logger)
	field := physics.NewFieldSimulator(validator, logger)

	if err := registerBuiltins(engine, field, validator); err != nil {
		store.Close()
		return nil, nil, err
	}

	shardCount := cfg.Shards
	if shardCount == 0 {
		shardCount = cfg.MaxWorkers
	}
	rt, err := runtime.New(runtime.Options{
		Engine:    engine,
		Physics:   field,
		Validator: validator,
		Pool:      sched.NewPool(cfg.MaxWorkers),
		ShardSet:  shards.NewSet(shardCount),
		Store:     store,
		Logger:    logger,
		Metrics:   m,
	})
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return rt, store, nil
}

// registerBuiltins wires the built-in primary and physics rules.
func registerBuiltins(engine *rules.Engine, field *physics.FieldSimulator, validator rules.Validator) error {
	trace, err := rules.NewSignalTraceRule(validator)
	if err != nil {
		return err
	}
	energy, err := rules.NewEnergyRule(validator)
	if err != nil {
		return err
	}
	decay, err := rules.NewFieldDecayRule(validator, 0.9)
	if err != nil {
		return err
	}
	if err := engine.Register(trace); err != nil {
		return err
	}
	if err := engine.Register(energy); err != nil {
		return err
	}
	return field.Register(decay)
}
