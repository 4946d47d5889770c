// Package identity layers checkpoint bookkeeping and branching on top of
// the snapshot store: named checkpoints with metadata, resumption, and
// branching a stored context into a new lineage.
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/voxelgraph/emurun/internal/models"
	"github.com/voxelgraph/emurun/internal/snapshot"
)

// branchKey is the context value branching metadata is recorded under.
const branchKey = "branch_meta"

// MetaStore is the store surface the manager needs: snapshot persistence
// plus per-snapshot metadata documents.
type MetaStore interface {
	snapshot.Store
	CreateWithMeta(ctx context.Context, sim *models.Context, metaJSON string) (snapshot.Ref, error)
	Meta(ctx context.Context, ref snapshot.Ref) (string, error)
}

// Manager orchestrates checkpoint, resume, and branch operations.
type Manager struct {
	store  MetaStore
	logger *slog.Logger
}

// NewManager creates a manager over the given store.
func NewManager(store MetaStore, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: store, logger: logger}
}

// Checkpoint persists the context with a metadata document and returns the
// new reference.
func (m *Manager) Checkpoint(ctx context.Context, sim *models.Context, meta map[string]any) (snapshot.Ref, error) {
	metaJSON := "{}"
	if len(meta) > 0 {
		raw, err := json.Marshal(meta)
		if err != nil {
			return "", fmt.Errorf("identity: encode checkpoint meta: %w", err)
		}
		metaJSON = string(raw)
	}
	ref, err := m.store.CreateWithMeta(ctx, sim, metaJSON)
	if err != nil {
		return "", err
	}
	m.logger.Info("checkpoint created", "ref", ref)
	return ref, nil
}

// Resume returns the context stored under ref.
func (m *Manager) Resume(ctx context.Context, ref snapshot.Ref) (*models.Context, error) {
	sim, err := m.store.Restore(ctx, ref)
	if err != nil {
		return nil, err
	}
	m.logger.Info("checkpoint resumed", "ref", ref)
	return sim, nil
}

// List returns all checkpoint references in creation order.
func (m *Manager) List(ctx context.Context) ([]snapshot.Ref, error) {
	return m.store.List(ctx)
}

// Describe returns the metadata document stored with ref.
func (m *Manager) Describe(ctx context.Context, ref snapshot.Ref) (map[string]any, error) {
	raw, err := m.store.Meta(ctx, ref)
	if err != nil {
		return nil, err
	}
	meta := map[string]any{}
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return nil, fmt.Errorf("identity: decode checkpoint meta: %w", err)
	}
	return meta, nil
}

// Branch creates a new checkpoint derived from an existing one: the stored
// context is resumed, tagged with the branch metadata, and re-persisted
// under a fresh reference. The original snapshot is untouched.
func (m *Manager) Branch(ctx context.Context, base snapshot.Ref, branchMeta map[string]any) (snapshot.Ref, error) {
	sim, err := m.store.Restore(ctx, base)
	if err != nil {
		return "", err
	}
	if sim.Values == nil {
		sim.Values = make(map[string]any)
	}
	tag := make(map[string]any, len(branchMeta)+1)
	for k, v := range branchMeta {
		tag[k] = v
	}
	tag["base"] = base.String()
	sim.Values[branchKey] = tag

	ref, err := m.Checkpoint(ctx, sim, branchMeta)
	if err != nil {
		return "", err
	}
	m.logger.Info("checkpoint branched", "base", base, "branch", ref)
	return ref, nil
}
