// Package batch runs uniform-shape tasks with bounded concurrency,
// preserving input order in the collected results regardless of
// completion order (spec.md §4.4).
package batch

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Task is one unit of work submitted to Run. Index is the task's
// position in the original input slice; Execute carries out the work.
type Task[T any] struct {
	Index   int
	TaskID  string
	Execute func(ctx context.Context) (T, error)
}

// Result pairs a task's outcome with its originating index, so callers
// can zip it back against their own input slice.
type Result[T any] struct {
	Index  int
	TaskID string
	Value  T
	Err    error
}

// Executor runs tasks with at most MaxParallel concurrent in flight. A
// task's own cancellation or failure never cancels its siblings
// (spec.md §4.4).
type Executor struct {
	MaxParallel int
	// Limiter optionally throttles task starts (requests/sec) in addition
	// to the MaxParallel concurrency cap; nil disables rate limiting.
	Limiter *rate.Limiter
	// OnTaskDone, if set, is called once per task after it finishes
	// (success or failure) — the progress package's terminal bar hooks in
	// here without Run needing to know about bars at all.
	OnTaskDone func()
	logger     *slog.Logger
}

// New builds an Executor bounded to maxParallel concurrent tasks.
func New(maxParallel int) *Executor {
	if maxParallel < 1 {
		maxParallel = 1
	}
	return &Executor{MaxParallel: maxParallel, logger: slog.With("component", "batch_executor")}
}

// Run executes every task, respecting MaxParallel, and returns results in
// the same order as the input tasks. A task whose Execute returns an
// error is recorded in that slot's Result.Err; Run itself never returns
// an error for an individual task failure.
func Run[T any](ctx context.Context, ex *Executor, tasks []Task[T]) []Result[T] {
	results := make([]Result[T], len(tasks))
	sem := make(chan struct{}, ex.MaxParallel)
	var wg sync.WaitGroup

	for i, task := range tasks {
		taskID := task.TaskID
		if taskID == "" {
			taskID = uuid.NewString()
		}

		wg.Add(1)
		go func(i int, task Task[T], taskID string) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			if ex.Limiter != nil {
				if err := ex.Limiter.Wait(ctx); err != nil {
					results[i] = Result[T]{Index: i, TaskID: taskID, Err: err}
					if ex.OnTaskDone != nil {
						ex.OnTaskDone()
					}
					return
				}
			}

			taskCtx := context.WithValue(ctx, taskIDKey{}, taskID)
			value, err := task.Execute(taskCtx)
			if err != nil {
				ex.logger.Warn("batch task failed", "task_id", taskID, "index", i, "error", err)
			}
			results[i] = Result[T]{Index: i, TaskID: taskID, Value: value, Err: err}
			if ex.OnTaskDone != nil {
				ex.OnTaskDone()
			}
		}(i, task, taskID)
	}

	wg.Wait()
	return results
}

type taskIDKey struct{}

// TaskIDFromContext returns the correlation ID Run attached to a task's
// context, or "" if called outside a Run-managed task.
func TaskIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(taskIDKey{}).(string)
	return id
}

// Values extracts just the successful values from results, in input
// order, dropping any slot whose task failed.
func Values[T any](results []Result[T]) []T {
	out := make([]T, 0, len(results))
	for _, r := range results {
		if r.Err == nil {
			out = append(out, r.Value)
		}
	}
	return out
}

// Errors collects every non-nil error, tagged with its originating index.
func Errors[T any](results []Result[T]) map[int]error {
	errs := make(map[int]error)
	for _, r := range results {
		if r.Err != nil {
			errs[r.Index] = r.Err
		}
	}
	return errs
}
