package simulation

import (
	"testing"

	"github.com/voxelgraph/emurun/internal/identity"
)

// Branching forks a stored lineage: the branch carries its tag and steps
// independently while the base snapshot stays untouched.
func TestBranchedLineagesDiverge(t *testing.T) {
	r := NewRunner(t)
	scenario := Scenario{
		Name:       "branching",
		GraphNodes: 16,
		Rules:      BuiltinRules(),
		Physics:    DecayPhysics(0.5),
		Ticks: []TickSpec{
			{Input: map[string]any{"gain": 1.0}},
			{Snapshot: true},
		},
	}
	result := r.Run(scenario)

	mgr := identity.NewManager(r.Store(), nil)
	base := result.Refs[0]
	branch, err := mgr.Branch(t.Context(), base, map[string]any{"experiment": "high-gain"})
	if err != nil {
		t.Fatalf("Branch: %v", err)
	}

	// Run the two lineages forward with different inputs.
	baseRT := r.Resume(scenario, base)
	branchRT := r.Resume(scenario, branch)

	baseOut, err := baseRT.Run(t.Context(), 3, []map[string]any{{"gain": 1.0}})
	if err != nil {
		t.Fatalf("base run: %v", err)
	}
	branchOut, err := branchRT.Run(t.Context(), 3, []map[string]any{{"gain": 5.0}})
	if err != nil {
		t.Fatalf("branch run: %v", err)
	}

	baseEnergy, _ := baseOut.Values["energy"].(float64)
	branchEnergy, _ := branchOut.Values["energy"].(float64)
	if branchEnergy <= baseEnergy {
		t.Errorf("high-gain branch should outrun the base: branch %.4f, base %.4f", branchEnergy, baseEnergy)
	}

	meta, err := mgr.Describe(t.Context(), branch)
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if meta["experiment"] != "high-gain" {
		t.Errorf("unexpected branch metadata: %v", meta)
	}

	// The base snapshot still restores to its original tick.
	fresh := r.Resume(scenario, base)
	if fresh.Context().Meta.Tick != 2 {
		t.Errorf("base snapshot changed: tick %d", fresh.Context().Meta.Tick)
	}
}
