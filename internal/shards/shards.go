// Package shards enumerates the independent per-tick work units fanned out
// through the scheduler pool. Each shard owns a partition of the graph's
// node space and writes results only into its own private slot; slots are
// committed into the context after the fan-out barrier, so concurrent
// injections never touch shared context state.
package shards

import (
	"context"
	"fmt"

	"github.com/voxelgraph/emurun/internal/models"
)

// ValuesKey is the context sub-key shard results live under.
const ValuesKey = "shards"

// Slot is the designated write target of a single shard. Exactly one task
// writes a slot during a fan-out; the runtime commits slots only after the
// barrier completes.
type Slot struct {
	// Data holds the shard's injection output for the current tick.
	Data map[string]any

	// Injections counts how many ticks have written this shard.
	Injections int
}

// Set is a registry of node-range shards over a graph's node space.
type Set struct {
	count int
}

// NewSet creates a set of count shards. Counts below one collapse to a
// single shard.
func NewSet(count int) *Set {
	if count < 1 {
		count = 1
	}
	return &Set{count: count}
}

// List enumerates the shard ids for the current tick. A context without a
// graph yields no shards.
func (s *Set) List(sim *models.Context) []string {
	if sim == nil || sim.Graph == nil || sim.Graph.NumNodes() == 0 {
		return nil
	}
	n := s.count
	if nodes := sim.Graph.NumNodes(); nodes < n {
		n = nodes
	}
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("shard-%d", i)
	}
	return ids
}

// Prepare allocates one private slot per shard id, carrying injection
// counts over from the previous tick's committed results.
func (s *Set) Prepare(sim *models.Context, ids []string) map[string]*Slot {
	prev, _ := sim.Values[ValuesKey].(map[string]any)
	slots := make(map[string]*Slot, len(ids))
	for _, id := range ids {
		slot := &Slot{Data: make(map[string]any)}
		if entry, ok := prev[id].(map[string]any); ok {
			if n, ok := entry["injections"].(int); ok {
				slot.Injections = n
			}
		}
		slots[id] = slot
	}
	return slots
}

// Commit writes the completed slots into sim.Values[ValuesKey] as plain
// nested maps. Call only after the fan-out barrier.
func (s *Set) Commit(sim *models.Context, slots map[string]*Slot) {
	bucket := make(map[string]any, len(slots))
	for id, slot := range slots {
		bucket[id] = map[string]any{
			"data":       slot.Data,
			"injections": slot.Injections,
		}
	}
	sim.Values[ValuesKey] = bucket
}

// Inject computes the shard's aggregate over its node range and writes it
// to the slot. The simulation context is read-only here; the slot is the
// only write target.
func (s *Set) Inject(ctx context.Context, sim *models.Context, index, total int, slot *Slot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if sim == nil || sim.Graph == nil {
		return fmt.Errorf("shards: no graph in context")
	}
	if slot == nil {
		return fmt.Errorf("shards: shard %d has no slot", index)
	}

	nodes := sim.Graph.NumNodes()
	lo, hi := rangeFor(index, total, nodes)

	gain := 1.0
	if v, ok := sim.Meta.Input["gain"].(float64); ok {
		gain = v
	}

	var sum, wsum float64
	edges := 0
	for i := lo; i < hi; i++ {
		sum += sim.Graph.Features[i] * gain
		for _, e := range sim.Graph.Neighbors(i) {
			wsum += e.Weight
			edges++
		}
	}

	slot.Data["nodes"] = hi - lo
	slot.Data["edges"] = edges
	slot.Data["activation"] = sum
	if hi > lo {
		slot.Data["mean_activation"] = sum / float64(hi-lo)
	}
	slot.Data["weight_sum"] = wsum
	slot.Injections++
	return nil
}

// rangeFor splits nodes into total contiguous ranges and returns the bounds
// of range index. The remainder spreads over the leading ranges.
func rangeFor(index, total, nodes int) (int, int) {
	if total <= 0 || nodes <= 0 {
		return 0, 0
	}
	base := nodes / total
	rem := nodes % total
	lo := index*base + minInt(index, rem)
	size := base
	if index < rem {
		size++
	}
	return lo, lo + size
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
