// Package poller owns the probe runners: it builds one periodic runner per
// configured probe, persists samples, rate-limits failure noise and runs the
// scheduled summary report.
package poller
