// Package models defines the data types threaded through the emulation
// runtime: the simulation context and its per-tick metadata.
package models

import (
	"github.com/voxelgraph/emurun/internal/graph"
)

// Meta holds per-tick scalars attached to a context.
type Meta struct {
	// Input is the external input merged at the start of the current tick.
	// Each tick overwrites it wholesale; inputs are never accumulated.
	Input map[string]any `json:"input,omitempty" yaml:"input,omitempty"`

	// Tick is the number of completed steps since the graph was loaded.
	Tick int `json:"tick" yaml:"tick"`
}

// Context is the mutable simulation state owned by a single runtime instance.
// Once initialized it always carries a graph and a meta block. The open-ended
// Values map is where rules and shard injections accumulate state.
type Context struct {
	Graph *graph.Graph `json:"graph" yaml:"graph"`

	Meta Meta `json:"meta" yaml:"meta"`

	// Constants holds simulation constants injected by the field simulator.
	Constants map[string]float64 `json:"constants,omitempty" yaml:"constants,omitempty"`

	// Values is the open-ended key-value portion of the context.
	Values map[string]any `json:"values,omitempty" yaml:"values,omitempty"`
}

// NewContext creates a context seeded with the given graph.
func NewContext(g *graph.Graph) *Context {
	return &Context{
		Graph:     g,
		Meta:      Meta{},
		Constants: make(map[string]float64),
		Values:    make(map[string]any),
	}
}

// Clone returns a per-stage copy of the context: fresh top-level maps so the
// recipient cannot alias the caller's map headers. Nested values are shared;
// stages that mutate nested state must use DeepClone. The graph pointer is
// shared in both cases: graphs are immutable-shape and are only ever replaced
// wholesale, never edited in place.
func (c *Context) Clone() *Context {
	if c == nil {
		return nil
	}
	out := &Context{
		Graph:     c.Graph,
		Meta:      Meta{Tick: c.Meta.Tick},
		Constants: make(map[string]float64, len(c.Constants)),
		Values:    make(map[string]any, len(c.Values)),
	}
	if c.Meta.Input != nil {
		out.Meta.Input = make(map[string]any, len(c.Meta.Input))
		for k, v := range c.Meta.Input {
			out.Meta.Input[k] = v
		}
	}
	for k, v := range c.Constants {
		out.Constants[k] = v
	}
	for k, v := range c.Values {
		out.Values[k] = v
	}
	return out
}

// DeepClone returns a copy with every nested map and slice duplicated.
// The runtime deep-clones the context before secondary (physics) evaluation
// so no rule can observe another rule's in-progress mutation.
func (c *Context) DeepClone() *Context {
	if c == nil {
		return nil
	}
	out := &Context{
		Graph:     c.Graph,
		Meta:      Meta{Tick: c.Meta.Tick},
		Constants: make(map[string]float64, len(c.Constants)),
	}
	if c.Meta.Input != nil {
		out.Meta.Input = deepCopyMap(c.Meta.Input)
	}
	for k, v := range c.Constants {
		out.Constants[k] = v
	}
	out.Values = deepCopyMap(c.Values)
	return out
}

// deepCopyMap recursively copies a string-keyed map.
func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

// deepCopyValue copies the container types contexts are built from.
// Scalars and unknown types are returned as-is; rule authors who store
// custom pointer types own their aliasing.
func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = deepCopyValue(e)
		}
		return out
	case []float64:
		out := make([]float64, len(t))
		copy(out, t)
		return out
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	case []int:
		out := make([]int, len(t))
		copy(out, t)
		return out
	case map[string]float64:
		out := make(map[string]float64, len(t))
		for k, e := range t {
			out[k] = e
		}
		return out
	default:
		return v
	}
}
