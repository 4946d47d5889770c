package sched

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPool_Defaults(t *testing.T) {
	assert.Equal(t, DefaultMaxWorkers, NewPool(0).MaxWorkers())
	assert.Equal(t, DefaultMaxWorkers, NewPool(-3).MaxWorkers())
	assert.Equal(t, 7, NewPool(7).MaxWorkers())
}

func TestSchedule_RunsEveryTask(t *testing.T) {
	const n = 100
	p := NewPool(3)

	var count atomic.Int64
	argSets := make([][]any, n)
	for i := range argSets {
		argSets[i] = []any{i}
	}

	err := p.Schedule(context.Background(), func(_ context.Context, args []any) error {
		count.Add(1)
		return nil
	}, argSets)
	require.NoError(t, err)
	assert.Equal(t, int64(n), count.Load(), "every task must run exactly once despite fewer workers than tasks")
}

func TestSchedule_BoundedConcurrency(t *testing.T) {
	const workers = 2
	p := NewPool(workers)

	var cur, peak atomic.Int64
	var mu sync.Mutex

	err := p.Schedule(context.Background(), func(_ context.Context, _ []any) error {
		c := cur.Add(1)
		mu.Lock()
		if c > peak.Load() {
			peak.Store(c)
		}
		mu.Unlock()
		cur.Add(-1)
		return nil
	}, make([][]any, 50))
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int64(workers))
}

func TestSchedule_EmptyBatch(t *testing.T) {
	p := NewPool(4)
	called := false
	err := p.Schedule(context.Background(), func(_ context.Context, _ []any) error {
		called = true
		return nil
	}, nil)
	require.NoError(t, err)
	assert.False(t, called)
}

func TestSchedule_NilTask(t *testing.T) {
	p := NewPool(4)
	err := p.Schedule(context.Background(), nil, [][]any{{1}})
	require.Error(t, err)
}

func TestSchedule_SurfacesTaskError(t *testing.T) {
	const n = 20
	p := NewPool(4)
	boom := errors.New("shard fault")

	var count atomic.Int64
	argSets := make([][]any, n)
	for i := range argSets {
		argSets[i] = []any{i}
	}

	err := p.Schedule(context.Background(), func(_ context.Context, args []any) error {
		count.Add(1)
		if args[0].(int) == 5 {
			return boom
		}
		return nil
	}, argSets)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, int64(n), count.Load(), "claimed tasks run to completion even after an error")
}

func TestSchedule_PassesArgs(t *testing.T) {
	p := NewPool(2)
	var mu sync.Mutex
	seen := map[int]string{}

	argSets := [][]any{{0, "shard-0"}, {1, "shard-1"}, {2, "shard-2"}}
	err := p.Schedule(context.Background(), func(_ context.Context, args []any) error {
		mu.Lock()
		seen[args[0].(int)] = args[1].(string)
		mu.Unlock()
		return nil
	}, argSets)
	require.NoError(t, err)
	assert.Equal(t, map[int]string{0: "shard-0", 1: "shard-1", 2: "shard-2"}, seen)
}
