// Package visualization renders simulation contexts for inspection. It is a
// read-only consumer: nothing here mutates the context.
package visualization

import (
	"fmt"
	"sort"
	"strings"

	"github.com/voxelgraph/emurun/internal/models"
	"github.com/voxelgraph/emurun/internal/shards"
)

// DefaultMaxNodes caps how many graph nodes are rendered before the output
// is elided for readability.
const DefaultMaxNodes = 64

// Options controls DOT rendering.
type Options struct {
	// MaxNodes caps rendered graph nodes. Zero means DefaultMaxNodes.
	MaxNodes int

	// ShowShards includes shard aggregate boxes when present.
	ShowShards bool
}

// RenderDOT produces a Graphviz DOT representation of the context's graph
// and, optionally, its shard aggregates.
func RenderDOT(sim *models.Context, opts Options) (string, error) {
	if sim == nil || sim.Graph == nil {
		return "", fmt.Errorf("visualization: context has no graph")
	}
	maxNodes := opts.MaxNodes
	if maxNodes <= 0 {
		maxNodes = DefaultMaxNodes
	}

	g := sim.Graph
	n := g.NumNodes()
	shown := n
	if shown > maxNodes {
		shown = maxNodes
	}

	var b strings.Builder
	b.WriteString("digraph emurun {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [shape=circle, style=filled, fillcolor=lightsteelblue, fontname=\"Helvetica\"];\n")
	b.WriteString("  edge [fontname=\"Helvetica\", fontsize=9];\n\n")

	for i := 0; i < shown; i++ {
		b.WriteString(fmt.Sprintf("  n%d [label=\"%d\", tooltip=\"feature=%.3f\"];\n", i, i, g.Features[i]))
	}
	if shown < n {
		b.WriteString(fmt.Sprintf("  elided [shape=plaintext, label=\"... %d more nodes\"];\n", n-shown))
	}
	b.WriteString("\n")

	for i := 0; i < shown; i++ {
		for _, e := range g.Neighbors(i) {
			if e.Target >= shown {
				continue
			}
			b.WriteString(fmt.Sprintf("  n%d -> n%d [label=\"%.2f\"];\n", e.Source, e.Target, e.Weight))
		}
	}

	if opts.ShowShards {
		renderShards(&b, sim)
	}

	b.WriteString("}\n")
	return b.String(), nil
}

// renderShards appends one record box per shard aggregate.
func renderShards(b *strings.Builder, sim *models.Context) {
	bucket, ok := sim.Values[shards.ValuesKey].(map[string]any)
	if !ok || len(bucket) == 0 {
		return
	}
	ids := make([]string, 0, len(bucket))
	for id := range bucket {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	b.WriteString("\n  subgraph cluster_shards {\n")
	b.WriteString("    label=\"shards\";\n")
	b.WriteString("    node [shape=record, fillcolor=lightgoldenrod];\n")
	for _, id := range ids {
		entry, ok := bucket[id].(map[string]any)
		if !ok {
			continue
		}
		data, _ := entry["data"].(map[string]any)
		mean := 0.0
		if v, ok := data["mean_activation"].(float64); ok {
			mean = v
		}
		nodes := 0
		if v, ok := data["nodes"].(int); ok {
			nodes = v
		}
		b.WriteString(fmt.Sprintf("    %q [label=\"%s|nodes %d|mean %.3f\"];\n", id, id, nodes, mean))
	}
	b.WriteString("  }\n")
}
