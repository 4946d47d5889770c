package simulation

import (
	"github.com/voxelgraph/emurun/internal/graph"
	"github.com/voxelgraph/emurun/internal/models"
	"github.com/voxelgraph/emurun/internal/policy"
	"github.com/voxelgraph/emurun/internal/rules"
	"github.com/voxelgraph/emurun/internal/runtime"
	"github.com/voxelgraph/emurun/internal/snapshot"
)

// RuleFactory builds the rules a scenario registers, gated by the scenario's
// validator.
type RuleFactory func(v rules.Validator) ([]*rules.Rule, error)

// Scenario defines a complete emulation experiment.
type Scenario struct {
	Name string

	// GraphNodes builds a feature-uniform chain graph of that many nodes.
	// Ignored when GraphConfig is set.
	GraphNodes int

	// GraphConfig, when non-nil, builds a synthetic voxel graph instead.
	GraphConfig *graph.Config

	// Rules produces the primary rule set. Nil registers no rules.
	Rules RuleFactory

	// Physics produces the physics rule set. Nil registers no rules.
	Physics RuleFactory

	// Ticks drives the run, one entry per tick.
	Ticks []TickSpec

	// MaxWorkers bounds the scheduler pool. Zero uses the pool default.
	MaxWorkers int

	// Shards is the fan-out width. Zero derives it from MaxWorkers.
	Shards int

	// Limits overrides the default policy bounds.
	Limits *policy.Limits

	// BeforeTick, when non-nil, is called before each tick executes. Use
	// this to manipulate the runtime between ticks.
	BeforeTick func(tick int, rt *runtime.Runtime)
}

// TickSpec drives a single tick.
type TickSpec struct {
	// Input is the tick's external signal. Nil means no input this tick.
	Input map[string]any

	// Snapshot persists the context after the tick completes.
	Snapshot bool

	// ExpectFault marks a tick whose step must fail. The run records the
	// error and stops; remaining ticks are not executed.
	ExpectFault bool

	// Label is an optional human-readable tag for debugging output.
	Label string
}

// UniformTicks builds n identical tick specs sharing one input.
func UniformTicks(n int, input map[string]any) []TickSpec {
	ticks := make([]TickSpec, n)
	for i := range ticks {
		ticks[i] = TickSpec{Input: input}
	}
	return ticks
}

// BuiltinRules is the standard primary rule set: signal tracing plus energy
// accumulation.
func BuiltinRules() RuleFactory {
	return func(v rules.Validator) ([]*rules.Rule, error) {
		trace, err := rules.NewSignalTraceRule(v)
		if err != nil {
			return nil, err
		}
		energy, err := rules.NewEnergyRule(v)
		if err != nil {
			return nil, err
		}
		return []*rules.Rule{trace, energy}, nil
	}
}

// DecayPhysics is the standard physics rule set: energy decay by factor.
func DecayPhysics(factor float64) RuleFactory {
	return func(v rules.Validator) ([]*rules.Rule, error) {
		decay, err := rules.NewFieldDecayRule(v, factor)
		if err != nil {
			return nil, err
		}
		return []*rules.Rule{decay}, nil
	}
}

// TickResult captures the outcome of a single tick.
type TickResult struct {
	Index   int
	Label   string
	Context *models.Context
	Ref     snapshot.Ref
	Err     error
}

// Result captures all ticks and the final runtime state.
type Result struct {
	Ticks   []TickResult
	Refs    []snapshot.Ref
	Runtime *runtime.Runtime
	Store   *snapshot.SQLiteStore

	// Final is the last successfully committed context.
	Final *models.Context
}
