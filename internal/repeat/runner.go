package repeat

import (
	"context"
	"errors"
	"sync"
	"time"

	logx "netpulse/pkg/logx"
)

// Callback is the recurring operation a Runner drives.
// It produces a result or fails; it must honor ctx cancellation itself.
type Callback[R any] func(ctx context.Context) (R, error)

// Option customizes a Runner at construction time.
type Option[R any] func(*Runner[R])

// WithClock injects the scheduling facility. Defaults to WallClock().
func WithClock[R any](c Clock) Option[R] {
	return func(r *Runner[R]) { r.clock = c }
}

// WithTransient installs the closed swallow-list classifier: failures for
// which fn returns true are swallowed and the cadence continues. Without a
// classifier every failure surfaces.
func WithTransient[R any](fn func(error) bool) Option[R] {
	return func(r *Runner[R]) { r.transient = fn }
}

// WithOnError installs a hook for failures raised by timer-fired cycles,
// which have no caller to propagate to. The cadence is already halted when
// the hook runs.
func WithOnError[R any](fn func(error)) Option[R] {
	return func(r *Runner[R]) { r.onError = fn }
}

// WithLogger attaches a logger. Defaults to a no-op logger.
func WithLogger[R any](log logx.Logger) Option[R] {
	return func(r *Runner[R]) { r.log = log }
}

// Runner owns the recurring-execution lifecycle of a single callback:
// invoke, tolerate transient failures, reschedule, cancel, reset.
//
// Invariants:
//   - at most one pending timer exists per Runner at any time;
//   - cycles are strictly sequential: the next timer is armed only after the
//     current cycle's outcome is known;
//   - Cancel only prevents future firings, never an in-flight cycle.
//
// RunOnce/Cancel/Reset are safe to call from the owner while timer-fired
// cycles run on timer goroutines, but callers must not drive the same Runner
// from multiple goroutines at once.
type Runner[R any] struct {
	cb        Callback[R]
	interval  time.Duration
	clock     Clock
	transient func(error) bool
	onError   func(error)
	log       logx.Logger

	mu      sync.Mutex
	pending TimerHandle
	last    R
	hasLast bool
	// runCtx is the context captured by the most recent RunOnce/Reset;
	// timer-fired cycles reuse it.
	runCtx context.Context
}

// New builds a Runner. Nothing runs until the owner calls RunOnce or Reset.
func New[R any](cb Callback[R], interval time.Duration, opts ...Option[R]) (*Runner[R], error) {
	if cb == nil {
		return nil, errors.New("repeat: callback required")
	}
	if interval <= 0 {
		return nil, errors.New("repeat: interval must be > 0")
	}
	r := &Runner[R]{
		cb:       cb,
		interval: interval,
		clock:    WallClock(),
		log:      logx.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r, nil
}

// Interval reports the fixed cadence. Immutable for the Runner's lifetime.
func (r *Runner[R]) Interval() time.Duration { return r.interval }

// LastResult returns the most recent successfully produced result.
// Swallowed failures leave it unchanged.
func (r *Runner[R]) LastResult() (R, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last, r.hasLast
}

// RunOnce invokes the callback immediately on the calling goroutine.
//
// On success it stores the result, arms the next firing and returns
// (result, true, nil). On a transient failure it returns (zero, false, nil)
// with the next firing still armed and the last result untouched. Any other
// failure is returned unmodified and no new firing is armed.
func (r *Runner[R]) RunOnce(ctx context.Context) (R, bool, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	r.mu.Lock()
	r.runCtx = ctx
	r.mu.Unlock()
	return r.cycle(ctx)
}

// Cancel stops the pending firing, if any. Idempotent. It does not touch a
// cycle that is already executing.
func (r *Runner[R]) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending != nil {
		r.pending.Stop()
		r.pending = nil
	}
}

// Reset discards whatever firing was pending, runs one cycle right now and
// re-establishes the cadence from this point. Same return contract as
// RunOnce.
func (r *Runner[R]) Reset(ctx context.Context) (R, bool, error) {
	r.Cancel()
	return r.RunOnce(ctx)
}

func (r *Runner[R]) cycle(ctx context.Context) (R, bool, error) {
	var zero R

	res, err := r.cb(ctx)
	if err != nil {
		if r.transient != nil && r.transient(err) {
			// Known-recoverable: swallow, keep the cadence.
			r.log.Debug("transient failure swallowed", logx.Err(err))
			r.schedule()
			return zero, false, nil
		}
		// Unexpected: surface it, cadence stays halted until the owner acts.
		return zero, false, err
	}

	r.mu.Lock()
	r.last = res
	r.hasLast = true
	r.mu.Unlock()

	r.schedule()
	return res, true, nil
}

// schedule arms the next firing. The previous handle, if still armed, is
// stopped first so at most one pending firing exists.
func (r *Runner[R]) schedule() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending != nil {
		r.pending.Stop()
	}
	r.pending = r.clock.AfterFunc(r.interval, r.fire)
}

// fire runs a timer-triggered cycle. Errors cannot propagate to a caller
// here, so they go to the OnError hook.
func (r *Runner[R]) fire() {
	r.mu.Lock()
	r.pending = nil
	ctx := r.runCtx
	r.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	if _, _, err := r.cycle(ctx); err != nil {
		r.log.Error("periodic cycle failed; cadence halted", logx.Err(err))
		if r.onError != nil {
			r.onError(err)
		}
	}
}
