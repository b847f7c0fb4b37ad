// Package speedtestprobe measures WAN quality (download/upload/ping) against
// nearby speedtest.net servers.
package speedtestprobe

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/showwin/speedtest-go/speedtest"

	"netpulse/internal/probe"
)

type Config struct {
	Name string

	// Timeout bounds the whole measurement. 0 means 3m.
	Timeout time.Duration

	// ServerCount is how many nearby candidates to latency-test before
	// picking one for the full run. 0 means 5.
	ServerCount int

	// MaxConnections limits parallel speedtest connections (memory knob).
	MaxConnections int

	// SavingMode trades accuracy for a much smaller memory footprint.
	SavingMode bool
}

type Probe struct {
	cfg Config
}

func New(cfg Config) (*Probe, error) {
	if strings.TrimSpace(cfg.Name) == "" {
		return nil, errors.New("speedtestprobe: name required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Minute
	}
	if cfg.ServerCount <= 0 {
		cfg.ServerCount = 5
	}
	return &Probe{cfg: cfg}, nil
}

func (p *Probe) Name() string { return p.cfg.Name }

func (p *Probe) Run(ctx context.Context) (*probe.Sample, error) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	// Don't use package-level speedtest.Fetch* helpers: speedtest-go keeps a
	// package-level default client whose DataManager retains large
	// snapshots/chunks across runs.
	st := speedtest.New(speedtest.WithUserConfig(&speedtest.UserConfig{
		SavingMode:     p.cfg.SavingMode,
		MaxConnections: p.cfg.MaxConnections,
	}))
	if p.cfg.MaxConnections > 0 {
		st.SetNThread(p.cfg.MaxConnections)
	}
	defer func() {
		st.Snapshots().Clean()
		st.Reset()
	}()

	user, err := st.FetchUserInfoContext(ctx)
	if err != nil {
		return nil, probe.Transient("fetch user info", err)
	}

	servers, err := st.FetchServerListContext(ctx)
	if err != nil {
		return nil, probe.Transient("fetch server list", err)
	}
	if a := servers.Available(); a != nil {
		servers = *a
	}
	if len(servers) == 0 {
		return nil, probe.Transient("fetch server list", errors.New("no servers available"))
	}

	// Closest candidates by distance first (cheap), then latency-test those.
	sort.Slice(servers, func(i, j int) bool {
		return servers[i].Distance < servers[j].Distance
	})
	n := p.cfg.ServerCount
	if n > len(servers) {
		n = len(servers)
	}

	var best *speedtest.Server
	for _, s := range servers[:n] {
		if err := ctx.Err(); err != nil {
			return nil, probe.Transient("latency test", err)
		}
		if err := s.PingTestContext(ctx, nil); err != nil || s.Latency <= 0 {
			continue
		}
		if best == nil || s.Latency < best.Latency {
			best = s
		}
	}
	if best == nil {
		return nil, probe.Transient("latency test", errors.New("all candidates failed"))
	}

	if err := best.DownloadTestContext(ctx); err != nil {
		return nil, probe.Transient("download test "+best.Host, err)
	}
	if err := best.UploadTestContext(ctx); err != nil {
		return nil, probe.Transient("upload test "+best.Host, err)
	}

	dl := best.DLSpeed.Mbps()
	ul := best.ULSpeed.Mbps()
	ping := float64(best.Latency.Milliseconds())
	jitter := float64(best.Jitter.Milliseconds())

	took := time.Since(start)
	return &probe.Sample{
		Probe: p.cfg.Name,
		At:    start,
		Took:  took,
		Summary: fmt.Sprintf("%.1f/%.1f Mbps, %.0fms ping via %s (%s, %s)",
			dl, ul, ping, best.Sponsor, best.Country, user.Isp),
		Metrics: map[string]float64{
			"download_mbps": dl,
			"upload_mbps":   ul,
			"ping_ms":       ping,
			"jitter_ms":     jitter,
		},
	}, nil
}
