package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config is the netpulse daemon configuration.
//
// Files may be JSON or YAML; YAML is coerced to JSON and both are decoded
// strictly (unknown fields are rejected).
type Config struct {
	Logging LoggingConfig `json:"logging"`

	// History controls the optional sample store. Omit to disable.
	History *HistoryConfig `json:"history,omitempty"`

	// Report controls the daily summary job (cron schedule).
	Report ReportConfig `json:"report"`

	Probes []ProbeConfig `json:"probes"`
}

type LoggingConfig struct {
	Level   string `json:"level,omitempty"`
	Console *bool  `json:"console,omitempty"` // nil means true
	File    struct {
		Enabled bool   `json:"enabled"`
		Path    string `json:"path,omitempty"`
	} `json:"file,omitempty"`
}

func (l LoggingConfig) ConsoleEnabled() bool {
	return l.Console == nil || *l.Console
}

// HistoryConfig controls the SQLite sample store.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type HistoryConfig struct {
	Path          string `json:"path"`
	BusyTimeout   string `json:"busy_timeout,omitempty"`
	RetentionDays int    `json:"retention_days,omitempty"` // 0 means 90
}

type ReportConfig struct {
	Enabled bool `json:"enabled"`
	// Schedule is a 5-field cron expression (or @daily etc.).
	// Default: "0 8 * * *".
	Schedule string `json:"schedule,omitempty"`
}

const DefaultReportSchedule = "0 8 * * *"

// ProbeConfig declares one probed target and its poll cadence.
type ProbeConfig struct {
	Name string `json:"name"`
	Type string `json:"type"` // "speedtest" | "http"

	// Every is the fixed poll interval: a Go duration ("10m"), HH:MM
	// ("02:30"), or an "interval:"/"every:" prefixed form.
	Every string `json:"every"`

	// Timeout bounds one measurement. Empty means the probe's default.
	Timeout string `json:"timeout,omitempty"`

	// http only
	URL string `json:"url,omitempty"`

	// speedtest only
	ServerCount    int  `json:"server_count,omitempty"`
	MaxConnections int  `json:"max_connections,omitempty"`
	SavingMode     bool `json:"saving_mode,omitempty"`
}

// Interval returns the parsed poll cadence.
func (p ProbeConfig) Interval() (time.Duration, error) {
	return ParseEvery(p.Every)
}

// Validate checks cross-field consistency. It is run before a config is
// committed, both at startup and on reload.
func (c *Config) Validate() error {
	if len(c.Probes) == 0 {
		return fmt.Errorf("probes: at least one probe required")
	}
	seen := map[string]bool{}
	for i, p := range c.Probes {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return fmt.Errorf("probes[%d]: name required", i)
		}
		if seen[name] {
			return fmt.Errorf("probes[%d]: duplicate name %q", i, name)
		}
		seen[name] = true

		switch strings.ToLower(strings.TrimSpace(p.Type)) {
		case "speedtest":
		case "http":
			raw := strings.TrimSpace(p.URL)
			if raw == "" {
				return fmt.Errorf("probes[%d] (%s): url required for http probe", i, name)
			}
			// Same shape check the probe constructor applies, so a config
			// that validates is one the poller can actually build.
			u, err := url.Parse(raw)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				return fmt.Errorf("probes[%d] (%s): invalid url %q (need http:// or https://)", i, name, p.URL)
			}
		default:
			return fmt.Errorf("probes[%d] (%s): unknown type %q", i, name, p.Type)
		}

		if _, err := p.Interval(); err != nil {
			return fmt.Errorf("probes[%d] (%s): every: %w", i, name, err)
		}
		if _, err := ParseDurationField(fmt.Sprintf("probes[%d].timeout", i), p.Timeout); err != nil {
			return err
		}
	}

	if c.Report.Enabled {
		sched := c.Report.Schedule
		if strings.TrimSpace(sched) == "" {
			sched = DefaultReportSchedule
		}
		if err := ValidateCron(sched); err != nil {
			return fmt.Errorf("report.schedule: %w", err)
		}
	}

	if c.History != nil {
		if strings.TrimSpace(c.History.Path) == "" {
			return fmt.Errorf("history.path: required when history is set")
		}
		if _, err := ParseDurationField("history.busy_timeout", c.History.BusyTimeout); err != nil {
			return err
		}
		if c.History.RetentionDays < 0 {
			return fmt.Errorf("history.retention_days: must be >= 0")
		}
	}

	return nil
}
