package simulation

import (
	"testing"

	"github.com/voxelgraph/emurun/internal/rules"
	"github.com/voxelgraph/emurun/internal/runtime"
	"github.com/voxelgraph/emurun/internal/shards"
)

// EnergyAt returns the accumulated energy after the given tick, or zero when
// none has been recorded.
func EnergyAt(result Result, tick int) float64 {
	if tick < 0 || tick >= len(result.Ticks) || result.Ticks[tick].Context == nil {
		return 0
	}
	v, _ := result.Ticks[tick].Context.Values[rules.KeyEnergy].(float64)
	return v
}

// AssertGraphUnchanged asserts that every tick carries a graph structurally
// identical to the final one. Rules transform values, never topology.
func AssertGraphUnchanged(t *testing.T, result Result) {
	t.Helper()
	if result.Final == nil || result.Final.Graph == nil {
		t.Fatal("AssertGraphUnchanged: no final context")
	}
	for _, tr := range result.Ticks {
		if tr.Context == nil {
			continue
		}
		if !tr.Context.Graph.Equal(result.Final.Graph) {
			t.Errorf("AssertGraphUnchanged: tick %d: graph diverged", tr.Index)
		}
	}
}

// AssertEnergyConverges asserts that accumulated energy settles within
// [min, max] for every tick at or after afterTick.
func AssertEnergyConverges(t *testing.T, result Result, min, max float64, afterTick int) {
	t.Helper()
	for i := afterTick; i < len(result.Ticks); i++ {
		if result.Ticks[i].Context == nil {
			continue
		}
		e := EnergyAt(result, i)
		if e < min || e > max {
			t.Errorf("AssertEnergyConverges: tick %d: energy %.6f not in [%.4f, %.4f]", i, e, min, max)
		}
	}
}

// AssertShardCoverage asserts that each tick's committed shard aggregates
// cover the graph's node space exactly once.
func AssertShardCoverage(t *testing.T, result Result) {
	t.Helper()
	for _, tr := range result.Ticks {
		if tr.Context == nil {
			continue
		}
		bucket, ok := tr.Context.Values[shards.ValuesKey].(map[string]any)
		if !ok {
			t.Errorf("AssertShardCoverage: tick %d: no shard results", tr.Index)
			continue
		}
		total := 0
		for id, entry := range bucket {
			data, ok := entry.(map[string]any)["data"].(map[string]any)
			if !ok {
				t.Errorf("AssertShardCoverage: tick %d: shard %s has no data", tr.Index, id)
				continue
			}
			if n, ok := data["nodes"].(int); ok {
				total += n
			}
		}
		if want := tr.Context.Graph.NumNodes(); total != want {
			t.Errorf("AssertShardCoverage: tick %d: shards cover %d of %d nodes", tr.Index, total, want)
		}
	}
}

// AssertChronologicalRefs asserts that the store lists the scenario's
// snapshots in the order they were taken.
func AssertChronologicalRefs(t *testing.T, result Result) {
	t.Helper()
	listed, err := result.Store.List(t.Context())
	if err != nil {
		t.Fatalf("AssertChronologicalRefs: list: %v", err)
	}
	if len(listed) != len(result.Refs) {
		t.Fatalf("AssertChronologicalRefs: store has %d refs, scenario took %d", len(listed), len(result.Refs))
	}
	for i, ref := range result.Refs {
		if listed[i] != ref {
			t.Errorf("AssertChronologicalRefs: position %d: listed %s, taken %s", i, listed[i], ref)
		}
	}
}

// AssertFaulted asserts that the run ended in a fault and the runtime is
// terminal.
func AssertFaulted(t *testing.T, result Result) {
	t.Helper()
	if len(result.Ticks) == 0 {
		t.Fatal("AssertFaulted: no ticks executed")
	}
	last := result.Ticks[len(result.Ticks)-1]
	if last.Err == nil {
		t.Fatal("AssertFaulted: last tick did not fault")
	}
	if result.Runtime.State() != runtime.StateFaulted {
		t.Errorf("AssertFaulted: runtime state %s, want %s", result.Runtime.State(), runtime.StateFaulted)
	}
}
