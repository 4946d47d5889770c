package snapshot

import (
	"context"

	"github.com/voxelgraph/emurun/internal/models"
)

// Store persists whole-context checkpoints. A reference, once issued, maps
// to an immutable payload: restoring it twice yields equal contexts.
type Store interface {
	// Create persists the context and returns a freshly generated
	// reference. References are never reused.
	Create(ctx context.Context, sim *models.Context) (Ref, error)

	// Restore returns an exact copy of the context stored under ref,
	// or ErrNotFound.
	Restore(ctx context.Context, ref Ref) (*models.Context, error)

	// List returns all known references in creation order. An empty
	// store returns an empty sequence.
	List(ctx context.Context) ([]Ref, error)

	Close() error
}
