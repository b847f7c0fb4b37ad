package history

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("history disabled")

// Config configures the sample store.
//
// An empty Path disables history entirely (Open returns nil, nil).
type Config struct {
	Path        string
	BusyTimeout time.Duration // sqlite busy_timeout; 0 means default
	Retention   time.Duration // samples older than this are pruned; 0 means 90 days
}

const defaultRetention = 90 * 24 * time.Hour

func (c Config) retention() time.Duration {
	if c.Retention <= 0 {
		return defaultRetention
	}
	return c.Retention
}
