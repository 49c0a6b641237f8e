// Package executor provides a single, process-wide cooperative worker pool
// (spec.md §4.3) whose Run/Go calls share one worker limit. weftd sizes the
// global pool at startup with SetGlobalWorkers; no other package submits
// work to it — the transport pumps and execute_request handling start
// plain goroutines.
package executor

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Executor is a fixed-size cooperative worker pool. The zero value is not
// usable; construct with New.
type Executor struct {
	sem *semaphore.Weighted
}

// New creates an Executor with the given worker count. workers <= 0 falls
// back to the spec.md §9 default of 4.
func New(workers int) *Executor {
	if workers <= 0 {
		workers = 4
	}
	return &Executor{sem: semaphore.NewWeighted(int64(workers))}
}

var (
	globalOnce sync.Once
	global     *Executor
)

// Global returns the lazily-initialized, process-wide executor (spec.md §9:
// "the implementer may expose it as a lazily-initialized static accessor
// with fixed worker count, default 4").
func Global() *Executor {
	globalOnce.Do(func() {
		global = New(4)
	})
	return global
}

// SetGlobalWorkers reconfigures the global executor's worker count before
// first use. It is a no-op once Global() has already been called, since
// rebuilding the pool out from under in-flight work would violate the
// single-scheduler invariant this package exists to provide.
func SetGlobalWorkers(workers int) {
	globalOnce.Do(func() {
		global = New(workers)
	})
}

// Run submits fn to the pool and blocks until either fn returns or ctx is
// done. Submission blocks (cooperatively) when the pool is saturated —
// there is no unbounded queue, by design: backpressure is visible to
// callers rather than silently buffered.
func (e *Executor) Run(ctx context.Context, fn func(context.Context) error) error {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer e.sem.Release(1)
	return fn(ctx)
}

// Go submits fn to run asynchronously, returning a channel that receives
// its error (nil on success) exactly once. Callers that don't care about
// the result may ignore the channel; it is always sent to and never
// blocks the worker.
func (e *Executor) Go(ctx context.Context, fn func(context.Context) error) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- e.Run(ctx, fn)
	}()
	return done
}
