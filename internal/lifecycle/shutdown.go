// Package lifecycle implements spec.md §4.9's six-phase shutdown
// coordinator and §4.10's OS signal bridge.
package lifecycle

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Phase is one of the seven strictly-ordered shutdown states (spec.md
// §4.9). Phases never move backward.
type Phase int32

const (
	PhaseRunning Phase = iota
	PhaseInitiated
	PhaseDraining
	PhaseSavingState
	PhaseNotifying
	PhaseCleanup
	PhaseComplete
)

func (p Phase) String() string {
	switch p {
	case PhaseRunning:
		return "running"
	case PhaseInitiated:
		return "initiated"
	case PhaseDraining:
		return "draining"
	case PhaseSavingState:
		return "saving_state"
	case PhaseNotifying:
		return "notifying"
	case PhaseCleanup:
		return "cleanup"
	case PhaseComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Hooks are the side effects the Coordinator performs at each phase
// transition; the kernel supplies them so this package stays ignorant of
// transport/session/vector-store concrete types.
type Hooks struct {
	SaveState func(ctx context.Context)
	Notify    func(restart bool)
	Cleanup   func()
}

// Coordinator drives the Running -> Complete sequence exactly once. Every
// handler increments/decrements its operation counter around its own
// execution (spec.md §4.9: "Operation guard") so Draining knows when it is
// safe to proceed.
type Coordinator struct {
	log *zap.Logger

	phase       atomic.Int32
	restart     atomic.Bool
	ops         atomic.Int64
	opsZero     chan struct{}
	opsZeroOnce sync.Once

	gracePeriod     time.Duration
	operationTimeout time.Duration

	hooks Hooks
	done  chan struct{}
}

// New builds a Coordinator starting in PhaseRunning.
func New(log *zap.Logger, gracePeriod, operationTimeout time.Duration, hooks Hooks) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	if gracePeriod <= 0 {
		gracePeriod = 5 * time.Second
	}
	if operationTimeout <= 0 {
		operationTimeout = 10 * time.Second
	}
	return &Coordinator{
		log: log, gracePeriod: gracePeriod, operationTimeout: operationTimeout,
		hooks: hooks, opsZero: make(chan struct{}), done: make(chan struct{}),
	}
}

// Phase returns the current phase.
func (c *Coordinator) Phase() Phase { return Phase(c.phase.Load()) }

// BeginOperation/EndOperation implement the operation guard; callers wrap
// every handler invocation with these (spec.md §4.9).
func (c *Coordinator) BeginOperation() {
	c.ops.Add(1)
}

func (c *Coordinator) EndOperation() {
	if c.ops.Add(-1) == 0 {
		c.opsZeroOnce.Do(func() { close(c.opsZero) })
	}
}

// Initiate transitions Running -> Initiated and starts the drain/save/
// notify/cleanup sequence in a background goroutine; idempotent per
// spec.md §8 ("shutdown_request during Initiated..Complete is a no-op").
func (c *Coordinator) Initiate(restart bool) {
	if !c.phase.CompareAndSwap(int32(PhaseRunning), int32(PhaseInitiated)) {
		return
	}
	c.restart.Store(restart)
	go c.run()
}

func (c *Coordinator) run() {
	c.advance(PhaseDraining)
	c.drain()

	c.advance(PhaseSavingState)
	if c.hooks.SaveState != nil {
		ctx, cancel := context.WithTimeout(context.Background(), c.operationTimeout)
		c.hooks.SaveState(ctx)
		cancel()
	}

	c.advance(PhaseNotifying)
	if c.hooks.Notify != nil {
		c.hooks.Notify(c.restart.Load())
	}

	c.advance(PhaseCleanup)
	if c.hooks.Cleanup != nil {
		c.hooks.Cleanup()
	}

	c.advance(PhaseComplete)
	close(c.done)
}

// drain blocks until the operation counter reaches zero or grace_period
// elapses, whichever comes first (spec.md §4.9).
func (c *Coordinator) drain() {
	// opsZero is closed the first time the counter ever reaches zero, which
	// is usually long before shutdown, so the counter itself is polled.
	deadline := time.After(c.gracePeriod)
	for c.ops.Load() > 0 {
		select {
		case <-deadline:
			c.log.Warn("shutdown: grace period elapsed with operations still in flight", zap.Int64("remaining", c.ops.Load()))
			return
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func (c *Coordinator) advance(p Phase) {
	c.phase.Store(int32(p))
	c.log.Info("shutdown phase", zap.String("phase", p.String()))
}

// Done is closed once PhaseComplete is reached.
func (c *Coordinator) Done() <-chan struct{} { return c.done }

// ShouldRejectNewWork reports whether the event loop should refuse new
// execute_requests (spec.md §4.9: "Initiated: reject new execute_requests
// with a polite error").
func (c *Coordinator) ShouldRejectNewWork() bool {
	return c.Phase() >= PhaseInitiated
}

// ShouldExitLoop reports whether the event loop's per-iteration check
// (spec.md §4.4 step 1: "if >= Cleanup, exit the loop") should fire.
func (c *Coordinator) ShouldExitLoop() bool {
	return c.Phase() >= PhaseCleanup
}
