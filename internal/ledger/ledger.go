// Package ledger records runs and their rounds in a local SQLite database so
// past convergence runs can be listed with `nullfix history`.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// schema contains the DDL executed on first open. Using IF NOT EXISTS makes
// it safe to run on every startup.
const schema = `
CREATE TABLE IF NOT EXISTS runs (
    run_id      TEXT PRIMARY KEY,
    command     TEXT NOT NULL,
    started_at  TIMESTAMP NOT NULL,
    finished_at TIMESTAMP,
    outcome     TEXT NOT NULL DEFAULT 'running',
    rounds      INTEGER NOT NULL DEFAULT 0,
    accumulated INTEGER NOT NULL DEFAULT 0,
    error       TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS rounds (
    run_id      TEXT NOT NULL REFERENCES runs(run_id),
    round       INTEGER NOT NULL,
    reported    INTEGER NOT NULL,
    selected    INTEGER NOT NULL,
    new         INTEGER NOT NULL,
    accumulated INTEGER NOT NULL,
    started_at  TIMESTAMP NOT NULL,
    finished_at TIMESTAMP NOT NULL,
    PRIMARY KEY (run_id, round)
);
`

// Run is a row of the runs table.
type Run struct {
	ID          string
	Command     string
	StartedAt   time.Time
	FinishedAt  time.Time // zero while running or after a crash
	Outcome     string
	Rounds      int
	Accumulated int
	Error       string
}

// Round is a row of the rounds table.
type Round struct {
	RunID       string
	Round       int
	Reported    int
	Selected    int
	New         int
	Accumulated int
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Ledger is a SQLite-backed history of runs.
type Ledger struct {
	db *sql.DB
}

// Open opens (or creates) the database at path, enables WAL mode and busy
// timeout, and creates the schema tables if they do not exist.
func Open(ctx context.Context, path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ledger: open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: enable WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: set busy timeout: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: create schema: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Close closes the database. A nil Ledger is a no-op.
func (l *Ledger) Close() error {
	if l == nil {
		return nil
	}
	return l.db.Close()
}

// StartRun inserts a run in the running state.
func (l *Ledger) StartRun(ctx context.Context, id, command string, at time.Time) error {
	if l == nil {
		return nil
	}
	const q = `INSERT INTO runs (run_id, command, started_at) VALUES (?, ?, ?)`
	if _, err := l.db.ExecContext(ctx, q, id, command, at.UTC()); err != nil {
		return fmt.Errorf("ledger: start run %s: %w", id, err)
	}
	return nil
}

// RecordRound upserts one round of a run and bumps the run's round count.
func (l *Ledger) RecordRound(ctx context.Context, r Round) error {
	if l == nil {
		return nil
	}
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ledger: begin tx for round: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	const ins = `
		INSERT INTO rounds (run_id, round, reported, selected, new, accumulated, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, round) DO UPDATE SET
			reported    = excluded.reported,
			selected    = excluded.selected,
			new         = excluded.new,
			accumulated = excluded.accumulated,
			finished_at = excluded.finished_at`
	if _, err := tx.ExecContext(ctx, ins, r.RunID, r.Round, r.Reported, r.Selected, r.New, r.Accumulated,
		r.StartedAt.UTC(), r.FinishedAt.UTC()); err != nil {
		return fmt.Errorf("ledger: record round %d: %w", r.Round, err)
	}
	const upd = `UPDATE runs SET rounds = MAX(rounds, ?), accumulated = ? WHERE run_id = ?`
	if _, err := tx.ExecContext(ctx, upd, r.Round, r.Accumulated, r.RunID); err != nil {
		return fmt.Errorf("ledger: update run %s: %w", r.RunID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ledger: commit round: %w", err)
	}
	return nil
}

// FinishRun stores the outcome of a run.
func (l *Ledger) FinishRun(ctx context.Context, id, outcome string, runErr error, at time.Time) error {
	if l == nil {
		return nil
	}
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	const q = `UPDATE runs SET outcome = ?, error = ?, finished_at = ? WHERE run_id = ?`
	if _, err := l.db.ExecContext(ctx, q, outcome, msg, at.UTC(), id); err != nil {
		return fmt.Errorf("ledger: finish run %s: %w", id, err)
	}
	return nil
}

// Runs returns the most recent runs first, at most limit of them (all when
// limit <= 0).
func (l *Ledger) Runs(ctx context.Context, limit int) ([]Run, error) {
	q := `SELECT run_id, command, started_at, finished_at, outcome, rounds, accumulated, error
		FROM runs ORDER BY started_at DESC, run_id`
	args := []any{}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger: list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.Command, &r.StartedAt, &finished, &r.Outcome, &r.Rounds, &r.Accumulated, &r.Error); err != nil {
			return nil, fmt.Errorf("ledger: scan run: %w", err)
		}
		if finished.Valid {
			r.FinishedAt = finished.Time
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Rounds returns the rounds of a run in order.
func (l *Ledger) Rounds(ctx context.Context, runID string) ([]Round, error) {
	const q = `SELECT run_id, round, reported, selected, new, accumulated, started_at, finished_at
		FROM rounds WHERE run_id = ? ORDER BY round`
	rows, err := l.db.QueryContext(ctx, q, runID)
	if err != nil {
		return nil, fmt.Errorf("ledger: list rounds: %w", err)
	}
	defer rows.Close()

	var out []Round
	for rows.Next() {
		var r Round
		if err := rows.Scan(&r.RunID, &r.Round, &r.Reported, &r.Selected, &r.New, &r.Accumulated, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("ledger: scan round: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
