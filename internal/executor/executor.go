// Package executor is the batched worker-pool substrate used by the
// orchestration layer. Tasks are partitioned into fixed-size batches;
// each batch runs on one worker, strictly in submitted order, while
// batches fan out across the pool. Run returns only once every batch has
// finished (wave barrier), with per-task failures collected instead of
// aborting siblings.
package executor

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

var ErrInvalidWorkerCount = errors.New("worker count outside accepted range")

// MaxWorkers bounds NumWorkers; beyond this the pool is all scheduling
// overhead for the I/O-bound workloads this package serves.
const MaxWorkers = 512

// Config sizes a wave. The zero value selects the defaults.
type Config struct {
	// NumWorkers is the number of concurrent workers. Zero selects the
	// host CPU count.
	NumWorkers int

	// WorkerBatchSize is the number of tasks a worker takes at once and
	// runs sequentially. Zero selects 1.
	WorkerBatchSize int
}

// Validate rejects explicit configurations outside the accepted range.
func (c Config) Validate() error {
	if c.NumWorkers < 0 || c.NumWorkers > MaxWorkers {
		return fmt.Errorf("%w: NumWorkers=%d (accepted 0..%d)", ErrInvalidWorkerCount, c.NumWorkers, MaxWorkers)
	}
	if c.WorkerBatchSize < 0 {
		return fmt.Errorf("%w: WorkerBatchSize=%d", ErrInvalidWorkerCount, c.WorkerBatchSize)
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.NumWorkers == 0 {
		c.NumWorkers = runtime.NumCPU()
	}
	if c.NumWorkers > MaxWorkers {
		c.NumWorkers = MaxWorkers
	}
	if c.WorkerBatchSize == 0 {
		c.WorkerBatchSize = 1
	}
	return c
}

// TaskError records the failure of one task, identified by its submitted
// index so callers can attribute it regardless of completion order.
type TaskError struct {
	Index int
	Err   error
}

func (e TaskError) Error() string {
	return fmt.Sprintf("task %d: %v", e.Index, e.Err)
}

func (e TaskError) Unwrap() error { return e.Err }

// Run executes the tasks under cfg and returns the results indexed like
// the input, plus the per-task failures sorted by task index. The slot of
// a failed task holds the zero value. Run itself only fails on an invalid
// configuration or a cancelled context.
func Run[T any](ctx context.Context, cfg Config, tasks []func(context.Context) (T, error)) ([]T, []TaskError, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	cfg = cfg.withDefaults()

	results := make([]T, len(tasks))
	var mu sync.Mutex
	var failures []TaskError

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.NumWorkers)

	for start := 0; start < len(tasks); start += cfg.WorkerBatchSize {
		end := start + cfg.WorkerBatchSize
		if end > len(tasks) {
			end = len(tasks)
		}
		start, end := start, end
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				out, err := tasks[i](ctx)
				if err != nil {
					mu.Lock()
					failures = append(failures, TaskError{Index: i, Err: err})
					mu.Unlock()
					continue
				}
				results[i] = out
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	sort.Slice(failures, func(i, j int) bool { return failures[i].Index < failures[j].Index })
	return results, failures, nil
}
