package batch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunPreservesInputOrder(t *testing.T) {
	ex := New(3)
	tasks := make([]Task[int], 10)
	for i := range tasks {
		i := i
		tasks[i] = Task[int]{
			Index: i,
			Execute: func(ctx context.Context) (int, error) {
				time.Sleep(time.Duration(10-i) * time.Millisecond)
				return i * i, nil
			},
		}
	}

	results := Run(context.Background(), ex, tasks)
	require.Len(t, results, 10)
	for i, r := range results {
		assert.Equal(t, i, r.Index)
		assert.Equal(t, i*i, r.Value)
		assert.NoError(t, r.Err)
	}
}

func TestRunRecordsPerTaskErrorsWithoutPoisoningBatch(t *testing.T) {
	ex := New(2)
	boom := errors.New("boom")
	tasks := []Task[string]{
		{Index: 0, Execute: func(ctx context.Context) (string, error) { return "ok", nil }},
		{Index: 1, Execute: func(ctx context.Context) (string, error) { return "", boom }},
		{Index: 2, Execute: func(ctx context.Context) (string, error) { return "ok-too", nil }},
	}

	results := Run(context.Background(), ex, tasks)
	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, boom)
	assert.NoError(t, results[2].Err)

	vals := Values(results)
	assert.Equal(t, []string{"ok", "ok-too"}, vals)

	errs := Errors(results)
	require.Contains(t, errs, 1)
}

func TestRunRespectsMaxParallel(t *testing.T) {
	ex := New(2)
	var inFlight int32
	var maxSeen int32

	tasks := make([]Task[struct{}], 8)
	for i := range tasks {
		tasks[i] = Task[struct{}]{
			Index: i,
			Execute: func(ctx context.Context) (struct{}, error) {
				n := atomic.AddInt32(&inFlight, 1)
				for {
					cur := atomic.LoadInt32(&maxSeen)
					if n <= cur || atomic.CompareAndSwapInt32(&maxSeen, cur, n) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				atomic.AddInt32(&inFlight, -1)
				return struct{}{}, nil
			},
		}
	}

	Run(context.Background(), ex, tasks)
	assert.LessOrEqual(t, atomic.LoadInt32(&maxSeen), int32(2))
}

func TestOneTaskCancellationDoesNotCancelSiblings(t *testing.T) {
	ex := New(4)
	tasks := []Task[int]{
		{Index: 0, Execute: func(ctx context.Context) (int, error) {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			<-cctx.Done()
			return 0, cctx.Err()
		}},
		{Index: 1, Execute: func(ctx context.Context) (int, error) {
			time.Sleep(5 * time.Millisecond)
			return 42, nil
		}},
	}

	results := Run(context.Background(), ex, tasks)
	assert.Error(t, results[0].Err)
	assert.NoError(t, results[1].Err)
	assert.Equal(t, 42, results[1].Value)
}
