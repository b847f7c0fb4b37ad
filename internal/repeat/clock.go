package repeat

import "time"

// TimerHandle is a cancellable pending invocation.
type TimerHandle interface {
	// Stop cancels the pending firing.
	// It reports whether the call prevented the firing (false when the timer
	// already fired or was stopped earlier).
	Stop() bool
}

// Clock is the scheduling facility a Runner arms its timers against.
//
// *time.Timer satisfies TimerHandle, so the wall clock implementation is a
// thin wrapper over time.AfterFunc.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) TimerHandle
}

type wallClock struct{}

// WallClock returns the real-time Clock used outside tests.
func WallClock() Clock { return wallClock{} }

func (wallClock) Now() time.Time { return time.Now() }

func (wallClock) AfterFunc(d time.Duration, f func()) TimerHandle {
	return time.AfterFunc(d, f)
}
