package speedtestprobe

import (
	"testing"
	"time"
)

func TestNewDefaults(t *testing.T) {
	t.Parallel()
	p, err := New(Config{Name: "wan"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.Name() != "wan" {
		t.Fatalf("Name = %q", p.Name())
	}
	if p.cfg.Timeout != 3*time.Minute {
		t.Fatalf("default timeout = %v", p.cfg.Timeout)
	}
	if p.cfg.ServerCount != 5 {
		t.Fatalf("default server count = %d", p.cfg.ServerCount)
	}
}

func TestNewRequiresName(t *testing.T) {
	t.Parallel()
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error for missing name")
	}
}
