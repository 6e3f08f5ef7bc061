// SPDX-License-Identifier: MIT

package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure Go driver
)

// ErrNoRuns indicates the history holds no completed runs yet.
var ErrNoRuns = errors.New("no audit runs recorded")

// History persists completed runs in SQLite so the daemon can answer
// time-range queries across restarts.
type History struct {
	db *sql.DB
}

// OpenHistory opens the run history at dbPath. WAL and busy_timeout are set
// through the DSN so they apply to every pooled connection.
func OpenHistory(dbPath string) (*History, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping history: %w", err)
	}

	h := &History{db: db}
	if err := h.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate history: %w", err)
	}
	return h, nil
}

// Close closes the database.
func (h *History) Close() error { return h.db.Close() }

// Ping verifies the database is reachable.
func (h *History) Ping(ctx context.Context) error { return h.db.PingContext(ctx) }

func (h *History) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		manifest TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		entries INTEGER NOT NULL,
		info INTEGER NOT NULL,
		warnings INTEGER NOT NULL,
		errors INTEGER NOT NULL,
		report TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	`
	_, err := h.db.Exec(schema)
	return err
}

// RunRecord is one history row without the full report payload.
type RunRecord struct {
	RunID     string        `json:"run_id"`
	Manifest  string        `json:"manifest"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Entries   int           `json:"entries"`
	Info      int           `json:"info"`
	Warnings  int           `json:"warnings"`
	Errors    int           `json:"errors"`
}

// Record inserts a completed run.
func (h *History) Record(ctx context.Context, report *Report) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	query := `
	INSERT INTO runs (id, manifest, started_at, duration_ms, entries, info, warnings, errors, report)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = h.db.ExecContext(ctx, query,
		report.RunID,
		report.Manifest,
		report.StartedAt.UTC().UnixNano(),
		report.Duration.Milliseconds(),
		report.Summary.Entries,
		report.Summary.Info,
		report.Summary.Warnings,
		report.Summary.Errors,
		string(payload),
	)
	return err
}

// RunsSince returns run records started at or after since, newest first.
func (h *History) RunsSince(ctx context.Context, since time.Time) ([]RunRecord, error) {
	query := `
	SELECT id, manifest, started_at, duration_ms, entries, info, warnings, errors
	FROM runs
	WHERE started_at >= ?
	ORDER BY started_at DESC
	`
	rows, err := h.db.QueryContext(ctx, query, since.UTC().UnixNano())
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []RunRecord
	for rows.Next() {
		var (
			rec         RunRecord
			startedNano int64
			durationMS  int64
		)
		if err := rows.Scan(&rec.RunID, &rec.Manifest, &startedNano, &durationMS,
			&rec.Entries, &rec.Info, &rec.Warnings, &rec.Errors); err != nil {
			return nil, err
		}
		rec.StartedAt = time.Unix(0, startedNano).UTC()
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Latest returns the most recent full report, or ErrNoRuns.
func (h *History) Latest(ctx context.Context) (*Report, error) {
	var payload string
	query := `SELECT report FROM runs ORDER BY started_at DESC LIMIT 1`
	if err := h.db.QueryRowContext(ctx, query).Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoRuns
		}
		return nil, err
	}

	var report Report
	if err := json.Unmarshal([]byte(payload), &report); err != nil {
		return nil, fmt.Errorf("unmarshal report: %w", err)
	}
	return &report, nil
}
