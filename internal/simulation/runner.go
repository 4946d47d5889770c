package simulation

import (
	"context"
	"testing"

	"github.com/voxelgraph/emurun/internal/graph"
	"github.com/voxelgraph/emurun/internal/physics"
	"github.com/voxelgraph/emurun/internal/policy"
	"github.com/voxelgraph/emurun/internal/rules"
	"github.com/voxelgraph/emurun/internal/runtime"
	"github.com/voxelgraph/emurun/internal/sched"
	"github.com/voxelgraph/emurun/internal/shards"
	"github.com/voxelgraph/emurun/internal/snapshot"
)

// Runner orchestrates multi-tick emulation experiments against a real rule
// engine, scheduler pool, and snapshot store.
type Runner struct {
	t     *testing.T
	store *snapshot.SQLiteStore
}

// NewRunner creates a runner with an isolated SQLite snapshot store.
func NewRunner(t *testing.T) *Runner {
	t.Helper()
	s, err := snapshot.NewSQLiteStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewRunner: failed to create snapshot store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return &Runner{t: t, store: s}
}

// Store returns the runner's snapshot store, for cross-runtime scenarios.
func (r *Runner) Store() *snapshot.SQLiteStore {
	return r.store
}

// Run executes the scenario and returns the collected results.
func (r *Runner) Run(scenario Scenario) Result {
	r.t.Helper()
	ctx := context.Background()

	rt := r.buildRuntime(scenario)
	g := r.buildGraph(scenario)
	if err := rt.LoadGraph(g); err != nil {
		r.t.Fatalf("%s: LoadGraph: %v", scenario.Name, err)
	}

	result := Result{Runtime: rt, Store: r.store}
	for i, tick := range scenario.Ticks {
		if scenario.BeforeTick != nil {
			scenario.BeforeTick(i, rt)
		}

		out, err := rt.Step(ctx, tick.Input)
		tr := TickResult{Index: i, Label: tick.Label, Context: out, Err: err}

		if tick.ExpectFault {
			if err == nil {
				r.t.Fatalf("%s: tick %d: expected fault, step succeeded", scenario.Name, i)
			}
			result.Ticks = append(result.Ticks, tr)
			return result
		}
		if err != nil {
			r.t.Fatalf("%s: tick %d: %v", scenario.Name, i, err)
		}
		result.Final = out

		if tick.Snapshot {
			ref, err := rt.Snapshot(ctx)
			if err != nil {
				r.t.Fatalf("%s: tick %d: snapshot: %v", scenario.Name, i, err)
			}
			tr.Ref = ref
			result.Refs = append(result.Refs, ref)
		}
		result.Ticks = append(result.Ticks, tr)
	}
	return result
}

// Resume builds a fresh runtime with the scenario's collaborators and
// restores it from ref, modeling recovery after a faulted instance is
// discarded.
func (r *Runner) Resume(scenario Scenario, ref snapshot.Ref) *runtime.Runtime {
	r.t.Helper()
	rt := r.buildRuntime(scenario)
	if _, err := rt.Restore(context.Background(), ref); err != nil {
		r.t.Fatalf("%s: resume from %s: %v", scenario.Name, ref, err)
	}
	return rt
}

func (r *Runner) buildRuntime(scenario Scenario) *runtime.Runtime {
	r.t.Helper()

	limits := policy.DefaultLimits()
	if scenario.Limits != nil {
		limits = *scenario.Limits
	}
	validator := policy.NewLimitValidator(limits)

	engine := rules.NewEngine(validator, nil)
	if scenario.Rules != nil {
		rs, err := scenario.Rules(validator)
		if err != nil {
			r.t.Fatalf("%s: build rules: %v", scenario.Name, err)
		}
		for _, rule := range rs {
			if err := engine.Register(rule); err != nil {
				r.t.Fatalf("%s: register rule %s: %v", scenario.Name, rule.Name, err)
			}
		}
	}

	field := physics.NewFieldSimulator(validator, nil)
	if scenario.Physics != nil {
		rs, err := scenario.Physics(validator)
		if err != nil {
			r.t.Fatalf("%s: build physics rules: %v", scenario.Name, err)
		}
		for _, rule := range rs {
			if err := field.Register(rule); err != nil {
				r.t.Fatalf("%s: register physics rule %s: %v", scenario.Name, rule.Name, err)
			}
		}
	}

	pool := sched.NewPool(scenario.MaxWorkers)
	shardCount := scenario.Shards
	if shardCount == 0 {
		shardCount = pool.MaxWorkers()
	}

	rt, err := runtime.New(runtime.Options{
		Engine:    engine,
		Physics:   field,
		Validator: validator,
		Pool:      pool,
		ShardSet:  shards.NewSet(shardCount),
		Store:     r.store,
	})
	if err != nil {
		r.t.Fatalf("%s: build runtime: %v", scenario.Name, err)
	}
	return rt
}

func (r *Runner) buildGraph(scenario Scenario) *graph.Graph {
	r.t.Helper()

	if scenario.GraphConfig != nil {
		g, err := graph.Build("", *scenario.GraphConfig)
		if err != nil {
			r.t.Fatalf("%s: build graph: %v", scenario.Name, err)
		}
		return g
	}

	nodes := scenario.GraphNodes
	if nodes <= 0 {
		nodes = 8
	}
	features := make([]float64, nodes)
	var edges []graph.Edge
	for i := range features {
		features[i] = 1.0
		if i+1 < nodes {
			edges = append(edges, graph.Edge{Source: i, Target: i + 1, Weight: 0.5})
		}
	}
	g, err := graph.FromEdges(features, edges)
	if err != nil {
		r.t.Fatalf("%s: chain graph: %v", scenario.Name, err)
	}
	return g
}
