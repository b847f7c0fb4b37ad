package history

import (
	"context"
	"strings"
	"time"

	"netpulse/internal/probe"
	logx "netpulse/pkg/logx"
)

// Store is the persistence API used by the poller.
type Store interface {
	AppendSample(ctx context.Context, s *probe.Sample) error
	// SamplesSince returns samples for one probe, newest first.
	SamplesSince(ctx context.Context, probeName string, since time.Time) ([]probe.Sample, error)
	// Prune drops samples older than the configured retention and reports
	// how many rows were removed.
	Prune(ctx context.Context) (int64, error)
	Close() error
}

// Open initializes the sample store.
// It returns (nil, nil) if history is disabled (empty path).
func Open(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return openSQLite(cfg, log)
}
