package snapshot

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/voxelgraph/emurun/internal/models"
)

// MemoryStore is an in-memory Store for tests and ephemeral runs. Payloads
// go through the same codec as the SQLite store, so a stored context is an
// independent copy, not an alias.
type MemoryStore struct {
	mu       sync.RWMutex
	payloads map[Ref][]byte
	gen      *refGenerator
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		payloads: make(map[Ref][]byte),
		gen:      newRefGenerator(),
	}
}

// Create persists an encoded copy of the context.
func (s *MemoryStore) Create(_ context.Context, sim *models.Context) (Ref, error) {
	if sim == nil {
		return "", fmt.Errorf("snapshot: nil context")
	}
	payload, err := encodeContext(sim)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ref, err := s.gen.Next(time.Now().UTC())
	if err != nil {
		return "", err
	}
	s.payloads[ref] = payload
	return ref, nil
}

// Restore decodes the payload stored under ref.
func (s *MemoryStore) Restore(_ context.Context, ref Ref) (*models.Context, error) {
	s.mu.RLock()
	payload, ok := s.payloads[ref]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	return decodeContext(payload)
}

// List returns references in creation order.
func (s *MemoryStore) List(_ context.Context) ([]Ref, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	refs := make([]Ref, 0, len(s.payloads))
	for ref := range s.payloads {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Compare(refs[j]) < 0 })
	return refs, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
