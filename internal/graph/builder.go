package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"

	"gonum.org/v1/gonum/stat"
)

// ErrTooManyEdges is returned when a built graph exceeds the configured
// edge-count ceiling. This is a construction-time failure only; a graph that
// passed Build never trips it at runtime.
var ErrTooManyEdges = errors.New("graph: edge count exceeds configured maximum")

// Config controls graph construction.
type Config struct {
	// Shape gives the volume dimensions for synthetic source data, used
	// when no readable source file is supplied.
	Shape [3]int `json:"shape" yaml:"shape"`

	// Threshold is the minimum edge weight magnitude. Edges below it are
	// never materialized.
	Threshold float64 `json:"threshold" yaml:"threshold"`

	// MaxEdges is the edge-count ceiling. Zero means no ceiling.
	MaxEdges int `json:"max_edges" yaml:"max_edges"`

	// Seed seeds the synthetic volume generator. Zero means time-free
	// default seed, keeping builds reproducible.
	Seed int64 `json:"seed,omitempty" yaml:"seed,omitempty"`
}

// DefaultConfig returns the default builder configuration.
func DefaultConfig() Config {
	return Config{
		Shape:     [3]int{16, 16, 16},
		Threshold: 0.1,
	}
}

// volumeFile is the on-disk JSON shape for pre-acquired volume data.
type volumeFile struct {
	Dims [3]int    `json:"dims"`
	Data []float64 `json:"data"`
}

// Build constructs a graph from a volumetric source. If sourcePath names a
// readable JSON volume file it is loaded; otherwise a synthetic volume of
// cfg.Shape is generated. Each voxel becomes a node whose feature is its
// normalized intensity; 6-neighbor voxel pairs whose intensity ratio
// magnitude meets cfg.Threshold become weighted directed edges.
func Build(sourcePath string, cfg Config) (*Graph, error) {
	dims, data, err := loadOrSynthesize(sourcePath, cfg)
	if err != nil {
		return nil, err
	}

	n := dims[0] * dims[1] * dims[2]
	if len(data) != n {
		return nil, fmt.Errorf("volume has %d voxels, dims %v require %d", len(data), dims, n)
	}

	features := normalize(data)

	var edges []Edge
	offsets := [6][3]int{{1, 0, 0}, {-1, 0, 0}, {0, 1, 0}, {0, -1, 0}, {0, 0, 1}, {0, 0, -1}}
	for idx := 0; idx < n; idx++ {
		x, y, z := unravel(idx, dims)
		for _, d := range offsets {
			nx, ny, nz := x+d[0], y+d[1], z+d[2]
			if nx < 0 || nx >= dims[0] || ny < 0 || ny >= dims[1] || nz < 0 || nz >= dims[2] {
				continue
			}
			nidx := ravel(nx, ny, nz, dims)
			w := features[idx] / (features[nidx] + 1e-9)
			if math.Abs(w) < cfg.Threshold {
				continue
			}
			edges = append(edges, Edge{Source: idx, Target: nidx, Weight: w})
		}
	}

	maxEdges := cfg.MaxEdges
	if maxEdges == 0 {
		maxEdges = n * 6
	}
	if len(edges) > maxEdges {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyEdges, len(edges), maxEdges)
	}

	g, err := FromEdges(features, edges)
	if err != nil {
		return nil, err
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("built graph failed validation: %w", err)
	}
	return g, nil
}

// loadOrSynthesize reads a JSON volume from sourcePath, or synthesizes one
// from cfg.Shape when the path is empty or unreadable.
func loadOrSynthesize(sourcePath string, cfg Config) ([3]int, []float64, error) {
	if sourcePath != "" {
		raw, err := os.ReadFile(sourcePath)
		if err == nil {
			var vf volumeFile
			if err := json.Unmarshal(raw, &vf); err != nil {
				return [3]int{}, nil, fmt.Errorf("parse volume %s: %w", sourcePath, err)
			}
			return vf.Dims, vf.Data, nil
		}
	}

	dims := cfg.Shape
	for _, d := range dims {
		if d <= 0 {
			return [3]int{}, nil, fmt.Errorf("invalid synthetic shape %v", dims)
		}
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	data := make([]float64, dims[0]*dims[1]*dims[2])
	for i := range data {
		data[i] = rng.Float64()
	}
	return dims, data, nil
}

// normalize rescales intensities to zero mean and unit variance, then shifts
// them positive so ratio weights keep their sign structure. Degenerate
// volumes (zero variance) pass through unchanged.
func normalize(data []float64) []float64 {
	mean, std := stat.MeanStdDev(data, nil)
	out := make([]float64, len(data))
	if std == 0 || math.IsNaN(std) {
		copy(out, data)
		return out
	}
	// Shift by +3 sigma so typical values stay positive.
	for i, v := range data {
		out[i] = (v-mean)/std + 3
	}
	return out
}

func unravel(idx int, dims [3]int) (int, int, int) {
	z := idx % dims[2]
	y := (idx / dims[2]) % dims[1]
	x := idx / (dims[1] * dims[2])
	return x, y, z
}

func ravel(x, y, z int, dims [3]int) int {
	return x*dims[1]*dims[2] + y*dims[2] + z
}
