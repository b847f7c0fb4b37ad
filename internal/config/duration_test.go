package config

import (
	"testing"
	"time"
)

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	if d, err := ParseDurationField("t", ""); err != nil || d != 0 {
		t.Fatalf("empty = (%v, %v), want (0, nil)", d, err)
	}
	if d, err := ParseDurationField("t", " 1m30s "); err != nil || d != 90*time.Second {
		t.Fatalf("parse = (%v, %v)", d, err)
	}
	if _, err := ParseDurationField("t", "fast"); err == nil {
		t.Fatal("expected error for junk")
	}
	if _, err := ParseDurationField("t", "-5s"); err == nil {
		t.Fatal("expected error for negative duration")
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	t.Parallel()
	if d, err := ParseDurationOrDefault("t", "", 5*time.Second); err != nil || d != 5*time.Second {
		t.Fatalf("empty = (%v, %v), want default", d, err)
	}
	if d, err := ParseDurationOrDefault("t", "250ms", 5*time.Second); err != nil || d != 250*time.Millisecond {
		t.Fatalf("explicit = (%v, %v)", d, err)
	}
	if _, err := ParseDurationOrDefault("t", "nope", 5*time.Second); err == nil {
		t.Fatal("expected error for junk")
	}
}
