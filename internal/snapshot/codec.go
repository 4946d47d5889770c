package snapshot

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/voxelgraph/emurun/internal/models"
)

func init() {
	// Concrete types that may appear behind the context's any-typed
	// values. Rule authors storing additional composite types must
	// register them before snapshotting.
	gob.Register(map[string]any{})
	gob.Register([]any{})
	gob.Register([]float64{})
	gob.Register([]string{})
	gob.Register([]int{})
	gob.Register(map[string]float64{})
}

// encodeContext serializes a context to an opaque gob blob. Gob round-trips
// non-finite floats, which JSON cannot, and the store treats the payload as
// opaque bytes either way.
func encodeContext(ctx *models.Context) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(ctx); err != nil {
		return nil, fmt.Errorf("snapshot: encode context: %w", err)
	}
	return buf.Bytes(), nil
}

// decodeContext deserializes a stored payload.
func decodeContext(payload []byte) (*models.Context, error) {
	var ctx models.Context
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&ctx); err != nil {
		return nil, fmt.Errorf("snapshot: decode context: %w", err)
	}
	// Gob drops empty maps; restore the always-initialized invariant.
	if ctx.Constants == nil {
		ctx.Constants = make(map[string]float64)
	}
	if ctx.Values == nil {
		ctx.Values = make(map[string]any)
	}
	return &ctx, nil
}
