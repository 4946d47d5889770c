// Package graph provides the sparse weighted graph model consumed by the
// emulation runtime, and the builder that constructs it from volumetric
// source data.
package graph

import (
	"fmt"
)

// Graph pairs a sparse weighted directed adjacency structure with a per-node
// feature vector. The adjacency is stored in compressed-sparse-row form:
// edges of node i occupy ColIdx[RowPtr[i]:RowPtr[i+1]], index-aligned with
// Weights. The shape is immutable after construction; consumers replace a
// graph wholesale rather than editing it in place.
type Graph struct {
	// RowPtr has length NumNodes+1; RowPtr[i] is the offset of node i's
	// first edge in ColIdx/Weights.
	RowPtr []int `json:"row_ptr"`

	// ColIdx holds the target node of each edge.
	ColIdx []int `json:"col_idx"`

	// Weights holds the weight of each edge, aligned with ColIdx.
	Weights []float64 `json:"weights"`

	// Features holds one scalar per node, index-aligned with the
	// adjacency dimensions.
	Features []float64 `json:"features"`
}

// Edge is a materialized (source, target, weight) triple.
type Edge struct {
	Source int     `json:"source"`
	Target int     `json:"target"`
	Weight float64 `json:"weight"`
}

// NumNodes returns the node count N.
func (g *Graph) NumNodes() int {
	if g == nil {
		return 0
	}
	return len(g.Features)
}

// NumEdges returns the number of materialized edges.
func (g *Graph) NumEdges() int {
	if g == nil {
		return 0
	}
	return len(g.ColIdx)
}

// Neighbors returns the outbound edges of node i. The returned slice is
// freshly allocated; callers may keep it.
func (g *Graph) Neighbors(i int) []Edge {
	if g == nil || i < 0 || i >= g.NumNodes() {
		return nil
	}
	lo, hi := g.RowPtr[i], g.RowPtr[i+1]
	out := make([]Edge, 0, hi-lo)
	for k := lo; k < hi; k++ {
		out = append(out, Edge{Source: i, Target: g.ColIdx[k], Weight: g.Weights[k]})
	}
	return out
}

// Validate checks the adjacency/feature invariants: RowPtr spans N+1 entries,
// offsets are monotone, ColIdx and Weights are aligned, and every target is
// inside the N x N adjacency dimensions.
func (g *Graph) Validate() error {
	if g == nil {
		return fmt.Errorf("graph is nil")
	}
	n := g.NumNodes()
	if len(g.RowPtr) != n+1 {
		return fmt.Errorf("row_ptr length %d, want %d", len(g.RowPtr), n+1)
	}
	if len(g.ColIdx) != len(g.Weights) {
		return fmt.Errorf("col_idx length %d does not match weights length %d", len(g.ColIdx), len(g.Weights))
	}
	if g.RowPtr[0] != 0 || g.RowPtr[n] != len(g.ColIdx) {
		return fmt.Errorf("row_ptr bounds [%d, %d] do not span %d edges", g.RowPtr[0], g.RowPtr[n], len(g.ColIdx))
	}
	for i := 0; i < n; i++ {
		if g.RowPtr[i] > g.RowPtr[i+1] {
			return fmt.Errorf("row_ptr not monotone at node %d", i)
		}
	}
	for k, c := range g.ColIdx {
		if c < 0 || c >= n {
			return fmt.Errorf("edge %d targets node %d, outside [0, %d)", k, c, n)
		}
	}
	return nil
}

// Equal reports structural equality of two graphs.
func (g *Graph) Equal(o *Graph) bool {
	if g == nil || o == nil {
		return g == o
	}
	if len(g.RowPtr) != len(o.RowPtr) || len(g.ColIdx) != len(o.ColIdx) ||
		len(g.Weights) != len(o.Weights) || len(g.Features) != len(o.Features) {
		return false
	}
	for i := range g.RowPtr {
		if g.RowPtr[i] != o.RowPtr[i] {
			return false
		}
	}
	for i := range g.ColIdx {
		if g.ColIdx[i] != o.ColIdx[i] {
			return false
		}
	}
	for i := range g.Weights {
		if g.Weights[i] != o.Weights[i] {
			return false
		}
	}
	for i := range g.Features {
		if g.Features[i] != o.Features[i] {
			return false
		}
	}
	return true
}

// FromEdges builds a graph from an explicit edge list and feature vector.
// Edges are grouped by source; within a source, insertion order is kept.
func FromEdges(features []float64, edges []Edge) (*Graph, error) {
	n := len(features)
	counts := make([]int, n)
	for _, e := range edges {
		if e.Source < 0 || e.Source >= n || e.Target < 0 || e.Target >= n {
			return nil, fmt.Errorf("edge %d->%d outside node range [0, %d)", e.Source, e.Target, n)
		}
		counts[e.Source]++
	}
	g := &Graph{
		RowPtr:   make([]int, n+1),
		ColIdx:   make([]int, len(edges)),
		Weights:  make([]float64, len(edges)),
		Features: append([]float64(nil), features...),
	}
	for i := 0; i < n; i++ {
		g.RowPtr[i+1] = g.RowPtr[i] + counts[i]
	}
	next := append([]int(nil), g.RowPtr[:n]...)
	for _, e := range edges {
		k := next[e.Source]
		g.ColIdx[k] = e.Target
		g.Weights[k] = e.Weight
		next[e.Source]++
	}
	return g, nil
}
