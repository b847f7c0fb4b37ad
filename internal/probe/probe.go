package probe

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Sample is one completed measurement.
type Sample struct {
	Probe   string             `json:"probe"`
	At      time.Time          `json:"at"`
	Took    time.Duration      `json:"took"`
	Summary string             `json:"summary"`
	Metrics map[string]float64 `json:"metrics,omitempty"`
}

// Probe is a single measurable target. Run blocks until the measurement
// completes or ctx is done.
type Probe interface {
	Name() string
	Run(ctx context.Context) (*Sample, error)
}

// Error marks a transient device/communication failure: the target was
// unreachable, timed out, or answered garbage. The poller's cadence
// tolerates these; anything NOT wrapped in Error is treated as a
// programming error and surfaces.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Transient wraps err as a transient probe failure. Returns nil for nil.
func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

// IsTransient reports whether err is (or wraps) a transient probe failure.
// This is the swallow classifier handed to repeat.Runner.
func IsTransient(err error) bool {
	var pe *Error
	return errors.As(err, &pe)
}
