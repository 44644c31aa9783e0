// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package progress

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/luuxx/ccp/internal/persistence/sqlite"
)

var migrations = []string{
	`
	CREATE TABLE IF NOT EXISTS run_history (
		run_id TEXT PRIMARY KEY,
		session TEXT NOT NULL,
		started_at TEXT NOT NULL,
		ended_at TEXT NOT NULL,
		elapsed_ms INTEGER NOT NULL,
		pauses INTEGER NOT NULL,
		xp INTEGER NOT NULL DEFAULT 0,
		completed BOOLEAN NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_run_history_ended ON run_history(ended_at);
	`,
	`
	CREATE TABLE IF NOT EXISTS xp_awards (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL UNIQUE,
		xp INTEGER NOT NULL,
		awarded_at TEXT NOT NULL
	);
	`,
}

// fixed width so that stored timestamps sort lexically
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Run is one finished session run.
type Run struct {
	RunID     string        `json:"runId"`
	Session   string        `json:"session"`
	StartedAt time.Time     `json:"startedAt"`
	EndedAt   time.Time     `json:"endedAt"`
	Elapsed   time.Duration `json:"elapsed"`
	Pauses    int           `json:"pauses"`
	XP        int           `json:"xp"`
	Completed bool          `json:"completed"`
}

// Options configures a Ledger.
type Options struct {
	XPPerLevel int
	Premium    bool
}

// Ledger persists XP and run history in SQLite and serves as the Gate. The
// gate methods read an in-memory total so they are safe to call from the
// scheduling loop.
type Ledger struct {
	db   *sql.DB
	opts Options

	mu      sync.RWMutex
	xp      int
	premium bool
}

// Open opens (or creates) the ledger database at path.
func Open(ctx context.Context, path string, opts Options) (*Ledger, error) {
	db, err := sqlite.Open(path, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}
	l, err := NewLedger(ctx, db, opts)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

// NewLedger migrates db and loads the XP total.
func NewLedger(ctx context.Context, db *sql.DB, opts Options) (*Ledger, error) {
	if opts.XPPerLevel <= 0 {
		opts.XPPerLevel = DefaultXPPerLevel
	}
	if err := sqlite.Migrate(ctx, db, migrations); err != nil {
		return nil, fmt.Errorf("progress ledger: migration failed: %w", err)
	}
	l := &Ledger{db: db, opts: opts, premium: opts.Premium}
	if err := db.QueryRowContext(ctx, `SELECT COALESCE(SUM(xp), 0) FROM xp_awards`).Scan(&l.xp); err != nil {
		return nil, fmt.Errorf("progress ledger: load xp: %w", err)
	}
	return l, nil
}

// DB exposes the underlying database for health checks.
func (l *Ledger) DB() *sql.DB { return l.db }

func (l *Ledger) Close() error { return l.db.Close() }

// XP returns the total awarded XP.
func (l *Ledger) XP() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.xp
}

// Level returns the current level.
func (l *Ledger) Level() int {
	return LevelFor(l.XP(), l.opts.XPPerLevel)
}

func (l *Ledger) IsFeatureUnlocked(levelThreshold int) bool {
	return l.Level() >= levelThreshold
}

func (l *Ledger) HasPremiumAccess() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.premium
}

func (l *Ledger) LevelMultiplier() float64 {
	return MultiplierFor(l.Level())
}

// SetPremium updates the entitlement (config reload).
func (l *Ledger) SetPremium(premium bool) {
	l.mu.Lock()
	l.premium = premium
	l.mu.Unlock()
}

// Record stores a finished run and, for completed runs, its XP award.
// Recording the same run twice is a no-op.
func (l *Ledger) Record(ctx context.Context, r Run) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("progress ledger: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
	INSERT INTO run_history (run_id, session, started_at, ended_at, elapsed_ms, pauses, xp, completed)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(run_id) DO NOTHING`,
		r.RunID, r.Session, r.StartedAt.UTC().Format(tsLayout), r.EndedAt.UTC().Format(tsLayout),
		r.Elapsed.Milliseconds(), r.Pauses, r.XP, r.Completed,
	)
	if err != nil {
		return fmt.Errorf("progress ledger: insert run: %w", err)
	}

	var awarded int64
	if r.Completed && r.XP > 0 {
		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO xp_awards (run_id, xp, awarded_at) VALUES (?, ?, ?)`,
			r.RunID, r.XP, r.EndedAt.UTC().Format(tsLayout),
		)
		if err != nil {
			return fmt.Errorf("progress ledger: insert award: %w", err)
		}
		awarded, _ = res.RowsAffected()
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("progress ledger: commit: %w", err)
	}
	if awarded > 0 {
		l.mu.Lock()
		l.xp += r.XP
		l.mu.Unlock()
	}
	return nil
}

// Recent returns up to n runs, newest first.
func (l *Ledger) Recent(ctx context.Context, n int) ([]Run, error) {
	if n <= 0 {
		n = 20
	}
	rows, err := l.db.QueryContext(ctx, `
	SELECT run_id, session, started_at, ended_at, elapsed_ms, pauses, xp, completed
	FROM run_history ORDER BY ended_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("progress ledger: query history: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			r              Run
			started, ended string
			elapsedMS      int64
		)
		if err := rows.Scan(&r.RunID, &r.Session, &started, &ended, &elapsedMS, &r.Pauses, &r.XP, &r.Completed); err != nil {
			return nil, fmt.Errorf("progress ledger: scan history: %w", err)
		}
		r.StartedAt, _ = time.Parse(tsLayout, started)
		r.EndedAt, _ = time.Parse(tsLayout, ended)
		r.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}

var _ Gate = (*Ledger)(nil)
