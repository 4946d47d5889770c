package simulation

import (
	"fmt"
	"testing"

	"github.com/voxelgraph/emurun/internal/models"
	"github.com/voxelgraph/emurun/internal/rules"
)

// faultOnSignal extends the builtin rules with one that fails whenever the
// input carries a "fail" key, modeling an unrecoverable rule fault.
func faultOnSignal() RuleFactory {
	return func(v rules.Validator) ([]*rules.Rule, error) {
		base, err := BuiltinRules()(v)
		if err != nil {
			return nil, err
		}
		tripwire, err := rules.New("tripwire", "Fails when the input demands it.",
			func(ctx *models.Context) (*models.Context, error) {
				if _, ok := ctx.Meta.Input["fail"]; ok {
					return nil, fmt.Errorf("tripwire: induced fault")
				}
				return ctx, nil
			}, v)
		if err != nil {
			return nil, err
		}
		return append(base, tripwire), nil
	}
}

func TestFaultStopsRun(t *testing.T) {
	r := NewRunner(t)
	result := r.Run(Scenario{
		Name:       "fault-terminal",
		GraphNodes: 8,
		Rules:      faultOnSignal(),
		Ticks: []TickSpec{
			{Input: map[string]any{"gain": 1.0}},
			{Input: map[string]any{"gain": 1.0}, Snapshot: true},
			{Input: map[string]any{"fail": true}, ExpectFault: true},
			{Label: "never-reached"},
		},
	})

	AssertFaulted(t, result)
	if len(result.Ticks) != 3 {
		t.Errorf("run must stop at the fault, executed %d ticks", len(result.Ticks))
	}
	// The committed context is the pre-fault one.
	if result.Final.Meta.Tick != 2 {
		t.Errorf("expected last good tick 2, got %d", result.Final.Meta.Tick)
	}
}

func TestRecoveryFromLastSnapshot(t *testing.T) {
	r := NewRunner(t)
	scenario := Scenario{
		Name:       "fault-recovery",
		GraphNodes: 8,
		Rules:      faultOnSignal(),
		Ticks: []TickSpec{
			{Input: map[string]any{"gain": 1.0}, Snapshot: true},
			{Input: map[string]any{"fail": true}, ExpectFault: true},
		},
	}
	result := r.Run(scenario)
	AssertFaulted(t, result)

	// A faulted instance is discarded; a fresh one resumes from the last
	// good snapshot and steps cleanly.
	rt := r.Resume(scenario, result.Refs[0])
	out, err := rt.Step(t.Context(), map[string]any{"gain": 1.0})
	if err != nil {
		t.Fatalf("step after recovery: %v", err)
	}
	if out.Meta.Tick != 2 {
		t.Errorf("expected tick 2 after recovery, got %d", out.Meta.Tick)
	}
}
