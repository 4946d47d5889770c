package visualization

import (
	"strings"
	"testing"

	"github.com/voxelgraph/emurun/internal/graph"
	"github.com/voxelgraph/emurun/internal/models"
	"github.com/voxelgraph/emurun/internal/shards"
)

func newContext(t *testing.T, nodes int) *models.Context {
	t.Helper()
	features := make([]float64, nodes)
	var edges []graph.Edge
	for i := range features {
		features[i] = float64(i)
		if i+1 < nodes {
			edges = append(edges, graph.Edge{Source: i, Target: i + 1, Weight: 0.5})
		}
	}
	g, err := graph.FromEdges(features, edges)
	if err != nil {
		t.Fatalf("FromEdges: %v", err)
	}
	return models.NewContext(g)
}

func TestRenderDOT(t *testing.T) {
	out, err := RenderDOT(newContext(t, 3), Options{})
	if err != nil {
		t.Fatalf("RenderDOT: %v", err)
	}
	for _, want := range []string{"digraph emurun {", "n0 ", "n2 ", "n0 -> n1", "n1 -> n2"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "elided") {
		t.Error("small graph should not be elided")
	}
}

func TestRenderDOT_ElidesLargeGraphs(t *testing.T) {
	out, err := RenderDOT(newContext(t, 10), Options{MaxNodes: 4})
	if err != nil {
		t.Fatalf("RenderDOT: %v", err)
	}
	if !strings.Contains(out, "6 more nodes") {
		t.Errorf("expected elision marker:\n%s", out)
	}
	if strings.Contains(out, "n5 ") {
		t.Error("nodes beyond the cap should not be rendered")
	}
}

func TestRenderDOT_Shards(t *testing.T) {
	sim := newContext(t, 4)
	sim.Values[shards.ValuesKey] = map[string]any{
		"shard-0": map[string]any{
			"data":       map[string]any{"nodes": 2, "mean_activation": 1.25},
			"injections": 1,
		},
	}

	out, err := RenderDOT(sim, Options{ShowShards: true})
	if err != nil {
		t.Fatalf("RenderDOT: %v", err)
	}
	if !strings.Contains(out, "cluster_shards") || !strings.Contains(out, "shard-0") {
		t.Errorf("expected shard cluster in output:\n%s", out)
	}

	// Without the flag the cluster is omitted.
	out, err = RenderDOT(sim, Options{})
	if err != nil {
		t.Fatalf("RenderDOT: %v", err)
	}
	if strings.Contains(out, "cluster_shards") {
		t.Error("shards rendered without ShowShards")
	}
}

func TestRenderDOT_NoGraph(t *testing.T) {
	if _, err := RenderDOT(nil, Options{}); err == nil {
		t.Fatal("expected error for nil context")
	}
	sim := newContext(t, 2)
	sim.Graph = nil
	if _, err := RenderDOT(sim, Options{}); err == nil {
		t.Fatal("expected error for missing graph")
	}
}
