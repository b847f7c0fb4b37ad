package config

import (
	"strings"
	"testing"
)

func validConfig() *Config {
	return &Config{
		Report: ReportConfig{Enabled: true, Schedule: "0 8 * * *"},
		Probes: []ProbeConfig{
			{Name: "wan", Type: "speedtest", Every: "30m"},
			{Name: "gw", Type: "http", Every: "30s", URL: "http://192.168.1.1/"},
		},
	}
}

func TestValidateOK(t *testing.T) {
	t.Parallel()
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{"no probes", func(c *Config) { c.Probes = nil }, "at least one probe"},
		{"empty name", func(c *Config) { c.Probes[0].Name = " " }, "name required"},
		{"duplicate name", func(c *Config) { c.Probes[1].Name = "wan" }, "duplicate"},
		{"unknown type", func(c *Config) { c.Probes[0].Type = "icmp" }, "unknown type"},
		{"http without url", func(c *Config) { c.Probes[1].URL = "" }, "url required"},
		{"bare host url", func(c *Config) { c.Probes[1].URL = "192.168.1.1" }, "invalid url"},
		{"non-http scheme", func(c *Config) { c.Probes[1].URL = "ftp://h/" }, "invalid url"},
		{"cron as interval", func(c *Config) { c.Probes[0].Every = "*/5 * * * *" }, "not allowed here"},
		{"bad report cron", func(c *Config) { c.Report.Schedule = "banana" }, "report.schedule"},
		{"bad timeout", func(c *Config) { c.Probes[0].Timeout = "fast" }, "timeout"},
		{"history without path", func(c *Config) { c.History = &HistoryConfig{} }, "history.path"},
		{"negative retention", func(c *Config) {
			c.History = &HistoryConfig{Path: "x.db", RetentionDays: -1}
		}, "retention_days"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Fatalf("error %q does not mention %q", err, tt.wantSub)
			}
		})
	}
}

func TestConsoleEnabledDefault(t *testing.T) {
	t.Parallel()
	var l LoggingConfig
	if !l.ConsoleEnabled() {
		t.Fatal("console should default to enabled")
	}
	off := false
	l.Console = &off
	if l.ConsoleEnabled() {
		t.Fatal("explicit false ignored")
	}
}
