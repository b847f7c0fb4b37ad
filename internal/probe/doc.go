// Package probe defines the measurement abstraction the poller drives and
// the transient error family the periodic runner is allowed to swallow.
package probe
