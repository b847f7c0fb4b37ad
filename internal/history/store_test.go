package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"netpulse/internal/probe"
	logx "netpulse/pkg/logx"
)

func openTestStore(t *testing.T, cfg Config) Store {
	t.Helper()
	if cfg.Path == "" {
		cfg.Path = filepath.Join(t.TempDir(), "history.db")
	}
	st, err := Open(cfg, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	st, err := Open(Config{}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if st != nil {
		t.Fatal("empty path should disable history")
	}
}

func TestAppendAndQuery(t *testing.T) {
	t.Parallel()
	st := openTestStore(t, Config{})
	ctx := context.Background()
	now := time.Now()

	samples := []*probe.Sample{
		{Probe: "wan", At: now.Add(-2 * time.Hour), Took: 40 * time.Second, Summary: "old",
			Metrics: map[string]float64{"download_mbps": 90}},
		{Probe: "wan", At: now.Add(-time.Minute), Took: 35 * time.Second, Summary: "fresh",
			Metrics: map[string]float64{"download_mbps": 110.5}},
		{Probe: "gw", At: now.Add(-time.Minute), Took: 20 * time.Millisecond, Summary: "200"},
	}
	for _, sm := range samples {
		if err := st.AppendSample(ctx, sm); err != nil {
			t.Fatalf("AppendSample: %v", err)
		}
	}

	got, err := st.SamplesSince(ctx, "wan", now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("SamplesSince: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d wan samples, want 2", len(got))
	}
	// Newest first.
	if got[0].Summary != "fresh" || got[1].Summary != "old" {
		t.Fatalf("unexpected order: %q, %q", got[0].Summary, got[1].Summary)
	}
	if got[0].Metrics["download_mbps"] != 110.5 {
		t.Fatalf("metrics round-trip broken: %v", got[0].Metrics)
	}
	if got[1].Took != 40*time.Second {
		t.Fatalf("took round-trip broken: %v", got[1].Took)
	}

	// Window filter.
	got, err = st.SamplesSince(ctx, "wan", now.Add(-30*time.Minute))
	if err != nil {
		t.Fatalf("SamplesSince: %v", err)
	}
	if len(got) != 1 || got[0].Summary != "fresh" {
		t.Fatalf("window filter broken: %+v", got)
	}
}

func TestSameSecondOrdering(t *testing.T) {
	t.Parallel()
	st := openTestStore(t, Config{})
	ctx := context.Background()

	// A whole-second timestamp must sort before a fractional one in the same
	// second, both in ordering and at the window boundary.
	sec := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	whole := &probe.Sample{Probe: "wan", At: sec, Summary: "whole"}
	frac := &probe.Sample{Probe: "wan", At: sec.Add(500 * time.Millisecond), Summary: "frac"}
	for _, sm := range []*probe.Sample{whole, frac} {
		if err := st.AppendSample(ctx, sm); err != nil {
			t.Fatalf("AppendSample: %v", err)
		}
	}

	got, err := st.SamplesSince(ctx, "wan", sec)
	if err != nil {
		t.Fatalf("SamplesSince: %v", err)
	}
	if len(got) != 2 || got[0].Summary != "frac" || got[1].Summary != "whole" {
		t.Fatalf("same-second order broken: %+v", got)
	}

	got, err = st.SamplesSince(ctx, "wan", frac.At)
	if err != nil {
		t.Fatalf("SamplesSince: %v", err)
	}
	if len(got) != 1 || got[0].Summary != "frac" {
		t.Fatalf("sub-second window boundary broken: %+v", got)
	}
}

func TestPrune(t *testing.T) {
	t.Parallel()
	st := openTestStore(t, Config{Retention: 24 * time.Hour})
	ctx := context.Background()
	now := time.Now()

	old := &probe.Sample{Probe: "wan", At: now.Add(-48 * time.Hour), Summary: "stale"}
	fresh := &probe.Sample{Probe: "wan", At: now.Add(-time.Hour), Summary: "keep"}
	if err := st.AppendSample(ctx, old); err != nil {
		t.Fatalf("AppendSample: %v", err)
	}
	if err := st.AppendSample(ctx, fresh); err != nil {
		t.Fatalf("AppendSample: %v", err)
	}

	removed, err := st.Prune(ctx)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 1 {
		t.Fatalf("pruned %d rows, want 1", removed)
	}

	got, err := st.SamplesSince(ctx, "wan", now.Add(-72*time.Hour))
	if err != nil {
		t.Fatalf("SamplesSince: %v", err)
	}
	if len(got) != 1 || got[0].Summary != "keep" {
		t.Fatalf("prune kept wrong rows: %+v", got)
	}
}
