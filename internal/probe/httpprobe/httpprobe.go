// Package httpprobe measures availability and latency of an HTTP endpoint.
package httpprobe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"netpulse/internal/probe"
)

type Config struct {
	Name    string
	URL     string
	Timeout time.Duration // per-request; 0 means 10s
}

type Probe struct {
	name   string
	url    string
	client *http.Client
}

func New(cfg Config) (*Probe, error) {
	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		return nil, errors.New("httpprobe: name required")
	}
	u, err := url.Parse(strings.TrimSpace(cfg.URL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("httpprobe: invalid url %q", cfg.URL)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Probe{
		name:   name,
		url:    u.String(),
		client: &http.Client{Timeout: timeout},
	}, nil
}

func (p *Probe) Name() string { return p.name }

func (p *Probe) Run(ctx context.Context) (*probe.Sample, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		// Request construction only fails on programmer error; surface it.
		return nil, fmt.Errorf("httpprobe %s: build request: %w", p.name, err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, probe.Transient("get "+p.url, err)
	}
	defer resp.Body.Close()
	// Drain a little so keep-alive connections can be reused.
	_, _ = io.CopyN(io.Discard, resp.Body, 4096)

	latency := time.Since(start)
	// The client follows redirects itself, so anything left that isn't 2xx
	// is a failed measurement.
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, probe.Transient("get "+p.url, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	return &probe.Sample{
		Probe:   p.name,
		At:      start,
		Took:    latency,
		Summary: fmt.Sprintf("%d in %dms", resp.StatusCode, latency.Milliseconds()),
		Metrics: map[string]float64{
			"latency_ms": float64(latency.Milliseconds()),
			"status":     float64(resp.StatusCode),
		},
	}, nil
}
