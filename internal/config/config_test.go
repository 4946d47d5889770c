package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultFileName), []byte(content), 0o644))
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.MaxWorkers)
	assert.Equal(t, filepath.Join(".emurun", "snapshots"), cfg.SnapshotDir)
	assert.Zero(t, cfg.SnapshotRetention)
	assert.Equal(t, [3]int{16, 16, 16}, cfg.Graph.Shape)
	assert.Equal(t, 0.1, cfg.Graph.Threshold)
	assert.Equal(t, 16, cfg.Policy.MaxDepth)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_YAMLOverlay(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
max_workers: 8
snapshot_retention: 10
shards: 16
graph:
  shape: [4, 4, 4]
  threshold: 0.5
policy:
  max_edges: 1000
logging:
  level: debug
`)

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.MaxWorkers)
	assert.Equal(t, 10, cfg.SnapshotRetention)
	assert.Equal(t, 16, cfg.Shards)
	assert.Equal(t, [3]int{4, 4, 4}, cfg.Graph.Shape)
	assert.Equal(t, 0.5, cfg.Graph.Threshold)
	assert.Equal(t, 1000, cfg.Policy.MaxEdges)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Unset fields keep their defaults.
	assert.Equal(t, filepath.Join(".emurun", "snapshots"), cfg.SnapshotDir)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "max_workers: 8\n")

	t.Setenv("EMURUN_MAX_WORKERS", "2")
	t.Setenv("EMURUN_SNAPSHOT_DIR", "/tmp/emurun-snaps")
	t.Setenv("EMURUN_SNAPSHOT_RETENTION", "5")
	t.Setenv("EMURUN_LOG_LEVEL", "trace")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.MaxWorkers)
	assert.Equal(t, "/tmp/emurun-snaps", cfg.SnapshotDir)
	assert.Equal(t, 5, cfg.SnapshotRetention)
	assert.Equal(t, "trace", cfg.Logging.Level)
}

func TestLoad_MalformedYAML(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "max_workers: [not an int\n")

	_, err := Load(dir)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, Validate(cfg))

	bad := Default()
	bad.MaxWorkers = 0
	assert.Error(t, Validate(bad))

	bad = Default()
	bad.SnapshotDir = ""
	assert.Error(t, Validate(bad))

	bad = Default()
	bad.Graph.Threshold = -1
	assert.Error(t, Validate(bad))

	bad = Default()
	bad.Graph.MaxEdges = -1
	assert.Error(t, Validate(bad))

	bad = Default()
	bad.SnapshotRetention = -1
	assert.Error(t, Validate(bad))
}
