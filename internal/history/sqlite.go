package history

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"netpulse/internal/probe"
	logx "netpulse/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// timeLayout is RFC3339 with fixed-width nanoseconds. RFC3339Nano trims
// trailing fractional zeros, which breaks lexicographic comparison of the
// stored text within a second. Timestamps are always stored in UTC so the
// offset suffix is constant too.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger

	retention time.Duration
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log, retention: cfg.retention()}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) AppendSample(ctx context.Context, sm *probe.Sample) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if sm == nil {
		return nil
	}
	at := sm.At
	if at.IsZero() {
		at = time.Now()
	}
	var metrics any
	if len(sm.Metrics) > 0 {
		b, err := json.Marshal(sm.Metrics)
		if err != nil {
			return fmt.Errorf("marshal metrics: %w", err)
		}
		metrics = string(b)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO samples(at, probe, took_ms, summary, metrics) VALUES(?,?,?,?,?)`,
		at.UTC().Format(timeLayout), sm.Probe, sm.Took.Milliseconds(), sm.Summary, metrics,
	)
	return err
}

func (s *sqliteStore) SamplesSince(ctx context.Context, probeName string, since time.Time) ([]probe.Sample, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT at, probe, took_ms, summary, metrics
		   FROM samples
		  WHERE probe = ? AND at >= ?
		  ORDER BY at DESC`,
		probeName, since.UTC().Format(timeLayout),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []probe.Sample
	for rows.Next() {
		var (
			at      string
			name    string
			tookMS  int64
			summary sql.NullString
			metrics sql.NullString
		)
		if err := rows.Scan(&at, &name, &tookMS, &summary, &metrics); err != nil {
			return nil, err
		}
		ts, err := time.Parse(time.RFC3339Nano, at)
		if err != nil {
			// A corrupt row should not sink the whole query.
			s.log.Warn("skipping sample with bad timestamp", logx.String("at", at))
			continue
		}
		sm := probe.Sample{
			Probe:   name,
			At:      ts,
			Took:    time.Duration(tookMS) * time.Millisecond,
			Summary: summary.String,
		}
		if metrics.Valid && metrics.String != "" {
			if err := json.Unmarshal([]byte(metrics.String), &sm.Metrics); err != nil {
				s.log.Warn("skipping unreadable metrics", logx.String("probe", name), logx.Err(err))
			}
		}
		out = append(out, sm)
	}
	return out, rows.Err()
}

func (s *sqliteStore) Prune(ctx context.Context) (int64, error) {
	if s == nil || s.db == nil {
		return 0, ErrDisabled
	}
	cutoff := time.Now().Add(-s.retention)
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM samples WHERE at < ?`, cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	return n, nil
}
