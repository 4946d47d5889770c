// Package sched provides the bounded fan-out/barrier pool used for per-tick
// shard work. Workers are spawned per call and hold no state between calls.
package sched

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// DefaultMaxWorkers is the worker cap used when none is configured.
const DefaultMaxWorkers = 4

// Task is one unit of independent side-effecting work. Tasks scheduled in
// the same call must not write the same shared sub-key; that discipline
// belongs to the caller, the pool enforces nothing beyond the barrier.
type Task func(ctx context.Context, args []any) error

// Pool executes batches of independent tasks with bounded parallelism.
type Pool struct {
	maxWorkers int
}

// NewPool creates a pool with the given worker cap. Non-positive values
// fall back to DefaultMaxWorkers.
func NewPool(maxWorkers int) *Pool {
	if maxWorkers <= 0 {
		maxWorkers = DefaultMaxWorkers
	}
	return &Pool{maxWorkers: maxWorkers}
}

// MaxWorkers returns the configured worker cap.
func (p *Pool) MaxWorkers() int {
	return p.maxWorkers
}

// Schedule runs task once per argument set using up to
// min(maxWorkers, len(argSets)) concurrent workers and returns only after
// every invocation has completed. An empty argSets returns immediately with
// no workers started.
//
// Task errors are surfaced, not swallowed: workers already draining the
// queue run their claimed tasks to completion, and the first error observed
// is returned after the barrier. Schedule never cancels in-flight tasks;
// ctx is passed through for tasks that honor cancellation themselves.
func (p *Pool) Schedule(ctx context.Context, task Task, argSets [][]any) error {
	if task == nil {
		return fmt.Errorf("sched: task is required")
	}
	if len(argSets) == 0 {
		return nil
	}

	workers := p.maxWorkers
	if len(argSets) < workers {
		workers = len(argSets)
	}

	queue := make(chan []any, len(argSets))
	for _, args := range argSets {
		queue <- args
	}
	close(queue)

	var g errgroup.Group
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			var firstErr error
			for args := range queue {
				if err := task(ctx, args); err != nil && firstErr == nil {
					firstErr = err
				}
			}
			return firstErr
		})
	}
	return g.Wait()
}
