package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Poll cadences are fixed intervals: the runner re-arms the same delay after
// every cycle, so a cron expression (which describes wall-clock points, not
// gaps) cannot drive one. Cron is only accepted for the report job, via
// ValidateCron.

var reHHMM = regexp.MustCompile(`^\s*(\d{1,3}):(\d{2})\s*$`)

// ParseEvery parses a fixed poll interval.
//
// Supported forms:
//   - Go duration: "55m", "2h30m"
//   - HH:MM: "00:50" (50 minutes), "02:30" (2 hours 30 minutes)
//   - "interval:" or "every:" prefixed variants of the above
func ParseEvery(raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("interval required")
	}

	low := strings.ToLower(s)
	for _, prefix := range []string{"interval:", "every:"} {
		if strings.HasPrefix(low, prefix) {
			return parseInterval(strings.TrimSpace(s[len(prefix):]))
		}
	}

	// Whitespace or a leading '@' means someone wrote a cron expression.
	if strings.ContainsAny(s, " \t\n\r") || strings.HasPrefix(s, "@") {
		return 0, fmt.Errorf("cron expression %q not allowed here; use a fixed interval like '10m' or '02:30'", raw)
	}

	return parseInterval(s)
}

func parseInterval(v string) (time.Duration, error) {
	if v == "" {
		return 0, fmt.Errorf("interval required")
	}
	if reHHMM.MatchString(v) {
		return parseHHMMDuration(v)
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid interval %q (use HH:MM or Go duration like '55m'/'2h30m')", v)
	}
	if d <= 0 {
		return 0, fmt.Errorf("interval must be > 0")
	}
	return d, nil
}

func parseHHMMDuration(v string) (time.Duration, error) {
	m := reHHMM.FindStringSubmatch(v)
	if len(m) != 3 {
		return 0, fmt.Errorf("invalid HH:MM %q", v)
	}
	// safe parse: hours up to 999, minutes 0..59
	var hh int
	for i := 0; i < len(m[1]); i++ {
		hh = hh*10 + int(m[1][i]-'0')
	}
	mm := int(m[2][0]-'0')*10 + int(m[2][1]-'0')
	if mm < 0 || mm > 59 {
		return 0, fmt.Errorf("invalid minutes in %q", v)
	}
	d := time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute
	if d <= 0 {
		return 0, fmt.Errorf("interval must be > 0")
	}
	return d, nil
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateCron checks a 5-field cron expression (descriptors like @daily are
// accepted too).
func ValidateCron(expr string) error {
	_, err := cronParser.Parse(strings.TrimSpace(expr))
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return nil
}
