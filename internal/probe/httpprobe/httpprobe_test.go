package httpprobe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"netpulse/internal/probe"
)

func TestNewValidation(t *testing.T) {
	t.Parallel()
	if _, err := New(Config{Name: "x", URL: "not a url"}); err == nil {
		t.Fatal("expected error for invalid url")
	}
	if _, err := New(Config{Name: "x", URL: "ftp://host/file"}); err == nil {
		t.Fatal("expected error for non-http scheme")
	}
	if _, err := New(Config{URL: "http://example.com"}); err == nil {
		t.Fatal("expected error for missing name")
	}
}

func TestRunSuccess(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p, err := New(Config{Name: "gw", URL: srv.URL, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if s.Probe != "gw" {
		t.Fatalf("Probe = %q", s.Probe)
	}
	if s.Metrics["status"] != http.StatusOK {
		t.Fatalf("status metric = %v", s.Metrics["status"])
	}
	if _, ok := s.Metrics["latency_ms"]; !ok {
		t.Fatal("latency_ms metric missing")
	}
}

func TestRunBadStatusIsTransient(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p, err := New(Config{Name: "gw", URL: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = p.Run(context.Background())
	if err == nil {
		t.Fatal("expected error for 503")
	}
	if !probe.IsTransient(err) {
		t.Fatalf("503 should classify transient, got %v", err)
	}
}

func TestRunNonSuccessStatusIsTransient(t *testing.T) {
	t.Parallel()
	// 304 is not auto-followed by the client and must not count as success.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotModified)
	}))
	defer srv.Close()

	p, err := New(Config{Name: "gw", URL: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = p.Run(context.Background())
	if err == nil {
		t.Fatal("expected error for 304")
	}
	if !probe.IsTransient(err) {
		t.Fatalf("304 should classify transient, got %v", err)
	}
}

func TestRunUnreachableIsTransient(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close() // nothing listens anymore

	p, err := New(Config{Name: "gw", URL: url, Timeout: time.Second})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = p.Run(context.Background())
	if err == nil {
		t.Fatal("expected error for closed server")
	}
	if !probe.IsTransient(err) {
		t.Fatalf("connection failure should classify transient, got %v", err)
	}
}
