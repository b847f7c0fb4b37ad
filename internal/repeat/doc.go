// Package repeat implements a self-rescheduling periodic task runner.
//
// A Runner repeatedly invokes one callback at a fixed interval. After each
// cycle whose outcome is known (success, or a failure classified as
// transient) it arms exactly one timer for the next cycle, so the cadence
// survives individual failed cycles. Any other failure surfaces to the
// caller and leaves no timer armed; the owner decides whether to Reset,
// RunOnce again, or abandon the runner.
//
// The timer facility is injected through the Clock interface, which makes a
// Runner testable against a fake clock. The first cycle is always triggered
// explicitly by the owner; construction never starts anything.
package repeat
