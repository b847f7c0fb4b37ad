package poller

import (
	"context"
	"sort"
	"time"

	"netpulse/internal/probe"
	logx "netpulse/pkg/logx"
)

const reportWindow = 24 * time.Hour

// Stats summarizes one metric across a report window.
type Stats struct {
	Count int
	Min   float64
	Max   float64
	Avg   float64
}

// aggregate folds samples into per-metric stats.
func aggregate(samples []probe.Sample) map[string]Stats {
	out := map[string]Stats{}
	for _, sm := range samples {
		for k, v := range sm.Metrics {
			st, ok := out[k]
			if !ok {
				st = Stats{Min: v, Max: v}
			}
			if v < st.Min {
				st.Min = v
			}
			if v > st.Max {
				st.Max = v
			}
			// Avg holds the running sum until finalized below.
			st.Avg += v
			st.Count++
			out[k] = st
		}
	}
	for k, st := range out {
		if st.Count > 0 {
			st.Avg /= float64(st.Count)
		}
		out[k] = st
	}
	return out
}

// report logs a per-probe summary of the last 24 hours.
func (s *Service) report(ctx context.Context) {
	if s.store == nil {
		s.log.Info("report skipped: history disabled")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	s.mu.Lock()
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	s.mu.Unlock()
	sort.Strings(names)

	since := time.Now().Add(-reportWindow)
	for _, name := range names {
		samples, err := s.store.SamplesSince(ctx, name, since)
		if err != nil {
			s.log.Warn("report query failed", logx.String("probe", name), logx.Err(err))
			continue
		}
		if len(samples) == 0 {
			s.log.Info("daily report: no samples", logx.String("probe", name))
			continue
		}

		fields := []logx.Field{
			logx.String("probe", name),
			logx.Int("samples", len(samples)),
		}
		stats := aggregate(samples)
		keys := make([]string, 0, len(stats))
		for k := range stats {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			st := stats[k]
			fields = append(fields,
				logx.Float64(k+"_min", st.Min),
				logx.Float64(k+"_avg", st.Avg),
				logx.Float64(k+"_max", st.Max),
			)
		}
		s.log.Info("daily report", fields...)
	}
}
