// Package runtime implements the simulation core: it owns the mutable
// context and orchestrates per-tick rule evaluation, shard fan-out, physics,
// validation, and snapshot persistence.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/voxelgraph/emurun/internal/graph"
	"github.com/voxelgraph/emurun/internal/metrics"
	"github.com/voxelgraph/emurun/internal/models"
	"github.com/voxelgraph/emurun/internal/physics"
	"github.com/voxelgraph/emurun/internal/rules"
	"github.com/voxelgraph/emurun/internal/sched"
	"github.com/voxelgraph/emurun/internal/shards"
	"github.com/voxelgraph/emurun/internal/snapshot"
)

var (
	// ErrTypeMismatch means LoadGraph was handed a value that does not
	// satisfy the graph contract.
	ErrTypeMismatch = errors.New("runtime: value does not satisfy the graph contract")

	// ErrNotReady means an operation requires a loaded graph.
	ErrNotReady = errors.New("runtime: no graph loaded")

	// ErrFaulted means the runtime hit an unrecovered fault during a
	// step. Faulted runtimes are terminal: discard and rebuild,
	// optionally resuming from the last good snapshot.
	ErrFaulted = errors.New("runtime: instance is faulted")
)

// State is the runtime lifecycle state.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateReady         State = "ready"
	StateStepping      State = "stepping"
	StateFaulted       State = "faulted"
)

// Runtime drives a single simulation. Its public operations are not safe
// for concurrent invocation; the caller serializes access, and separate
// Runtime instances share nothing but the snapshot store's storage.
type Runtime struct {
	engine    *rules.Engine
	physics   *physics.FieldSimulator
	validator rules.Validator
	pool      *sched.Pool
	shardSet  *shards.Set
	store     snapshot.Store
	logger    *slog.Logger
	metrics   *metrics.Metrics

	state   State
	context *models.Context
}

// Options wires the runtime's collaborators. Engine, Physics, Pool, and
// Store are required; ShardSet, Validator, Logger, and Metrics have working
// defaults.
type Options struct {
	Engine    *rules.Engine
	Physics   *physics.FieldSimulator
	Validator rules.Validator
	Pool      *sched.Pool
	ShardSet  *shards.Set
	Store     snapshot.Store
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
}

// New creates a runtime in the Uninitialized state.
func New(opts Options) (*Runtime, error) {
	if opts.Engine == nil {
		return nil, fmt.Errorf("runtime: rule engine is required")
	}
	if opts.Physics == nil {
		return nil, fmt.Errorf("runtime: field simulator is required")
	}
	if opts.Pool == nil {
		return nil, fmt.Errorf("runtime: scheduler pool is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("runtime: snapshot store is required")
	}
	if opts.ShardSet == nil {
		opts.ShardSet = shards.NewSet(opts.Pool.MaxWorkers())
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewNop()
	}
	return &Runtime{
		engine:    opts.Engine,
		physics:   opts.Physics,
		validator: opts.Validator,
		pool:      opts.Pool,
		shardSet:  opts.ShardSet,
		store:     opts.Store,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		state:     StateUninitialized,
	}, nil
}

// State returns the current lifecycle state.
func (r *Runtime) State() State {
	return r.state
}

// Context returns the current context. Callers treat it as read-only
// between steps.
func (r *Runtime) Context() *models.Context {
	return r.context
}

// LoadGraph initializes (or reinitializes) the simulation context with the
// given graph, replacing any prior context.
func (r *Runtime) LoadGraph(g *graph.Graph) error {
	if r.state == StateFaulted {
		return ErrFaulted
	}
	if g == nil {
		return fmt.Errorf("%w: nil graph", ErrTypeMismatch)
	}
	if err := g.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrTypeMismatch, err)
	}
	r.context = models.NewContext(g)
	r.state = StateReady
	r.logger.Info("graph loaded", "nodes", g.NumNodes(), "edges", g.NumEdges())
	return nil
}

// Step performs one simulation tick: merge input, primary rule evaluation,
// shard fan-out, physics over a deep copy, and policy validation. Any
// stage error faults the runtime and propagates to the caller.
func (r *Runtime) Step(ctx context.Context, input map[string]any) (*models.Context, error) {
	switch r.state {
	case StateFaulted:
		return nil, ErrFaulted
	case StateUninitialized:
		return nil, ErrNotReady
	}

	r.state = StateStepping
	start := time.Now()
	out, err := r.step(ctx, input)
	if err != nil {
		r.state = StateFaulted
		r.metrics.StepFaulted()
		r.logger.Error("step faulted", "tick", r.context.Meta.Tick, "error", err)
		return nil, err
	}
	r.context = out
	r.state = StateReady
	r.metrics.StepCompleted(time.Since(start))
	r.logger.Debug("step complete", "tick", out.Meta.Tick, "duration", time.Since(start))
	return out, nil
}

func (r *Runtime) step(ctx context.Context, input map[string]any) (*models.Context, error) {
	cur := r.context

	// Stage 1: merge input. Overwrite, never accumulate.
	if input != nil {
		cur.Meta.Input = input
	}

	// Stage 2: primary rule evaluation over the whole context.
	cur, err := r.engine.Evaluate(cur)
	if err != nil {
		return nil, fmt.Errorf("primary evaluation: %w", err)
	}

	// Stage 3: shard fan-out. Slots are private until the barrier
	// completes, then committed into the context.
	ids := r.shardSet.List(cur)
	if len(ids) > 0 {
		slots := r.shardSet.Prepare(cur, ids)
		argSets := make([][]any, len(ids))
		for i, id := range ids {
			argSets[i] = []any{i, id}
		}
		total := len(ids)
		task := func(tctx context.Context, args []any) error {
			index := args[0].(int)
			id := args[1].(string)
			return r.shardSet.Inject(tctx, cur, index, total, slots[id])
		}
		if err := r.pool.Schedule(ctx, task, argSets); err != nil {
			return nil, fmt.Errorf("shard fan-out: %w", err)
		}
		r.shardSet.Commit(cur, slots)
	}

	// Stage 4: physics over a deep copy of the post-fan-out context.
	cur, err = r.physics.Apply(cur)
	if err != nil {
		return nil, fmt.Errorf("physics evaluation: %w", err)
	}

	// Stage 5: policy validation of the resulting context.
	if r.validator != nil && !r.validator.ValidateContext(cur) {
		return nil, fmt.Errorf("step validation: %w", rules.ErrContextRejected)
	}

	cur.Meta.Tick++
	return cur, nil
}

// Run invokes Step the given number of times, feeding inputs[i] when
// present, and returns only the final context. A fault in any iteration
// aborts the remaining iterations and propagates.
func (r *Runtime) Run(ctx context.Context, steps int, inputs []map[string]any) (*models.Context, error) {
	var out *models.Context
	for i := 0; i < steps; i++ {
		var input map[string]any
		if i < len(inputs) {
			input = inputs[i]
		}
		var err error
		out, err = r.Step(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("step %d of %d: %w", i+1, steps, err)
		}
	}
	return out, nil
}

// Snapshot persists the current context and returns its reference.
func (r *Runtime) Snapshot(ctx context.Context) (snapshot.Ref, error) {
	switch r.state {
	case StateFaulted:
		return "", ErrFaulted
	case StateUninitialized:
		return "", ErrNotReady
	}
	ref, err := r.store.Create(ctx, r.context)
	if err != nil {
		return "", err
	}
	r.metrics.SnapshotCreated()
	r.logger.Info("snapshot created", "ref", ref, "tick", r.context.Meta.Tick)
	return ref, nil
}

// Restore atomically replaces the current context with the one stored
// under ref. The old context is either fully replaced or kept untouched;
// a failed restore never leaves a partial context.
func (r *Runtime) Restore(ctx context.Context, ref snapshot.Ref) (*models.Context, error) {
	if r.state == StateFaulted {
		return nil, ErrFaulted
	}
	restored, err := r.store.Restore(ctx, ref)
	if err != nil {
		return nil, err
	}
	r.context = restored
	r.state = StateReady
	r.metrics.SnapshotRestored()
	r.logger.Info("snapshot restored", "ref", ref, "tick", restored.Meta.Tick)
	return restored, nil
}
