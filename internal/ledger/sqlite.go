package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens or creates the history database at dbPath.
// Use ":memory:" for an in-memory database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
			return nil, wrap(ErrOpenFailed, err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, wrap(ErrOpenFailed, err)
	}
	// Every pooled connection to ":memory:" would see its own database.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, wrap(ErrOpenFailed, fmt.Errorf("initialize schema: %w", err))
	}
	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		skipped INTEGER NOT NULL,
		succeeded INTEGER NOT NULL,
		failed INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS outcomes (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		input TEXT NOT NULL,
		output TEXT NOT NULL,
		status TEXT NOT NULL,
		reason TEXT,
		error TEXT,
		duration_ms INTEGER NOT NULL,
		PRIMARY KEY (run_id, seq)
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record stores run and its outcomes in one transaction.
func (s *SQLiteStore) Record(ctx context.Context, run Run, outcomes []FileOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrap(ErrRecordFailed, err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO runs (id, started, duration_ms, skipped, succeeded, failed) VALUES (?, ?, ?, ?, ?, ?)",
		run.ID, run.Started.UnixMilli(), run.Duration.Milliseconds(), run.Skipped, run.Succeeded, run.Failed,
	)
	if err != nil {
		return wrap(ErrRecordFailed, fmt.Errorf("insert run: %w", err))
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO outcomes (run_id, seq, input, output, status, reason, error, duration_ms) VALUES (?, ?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return wrap(ErrRecordFailed, err)
	}
	defer func() { _ = stmt.Close() }()

	for i, o := range outcomes {
		if _, err := stmt.ExecContext(ctx, run.ID, i, o.Input, o.Output, o.Status, o.Reason, o.Error, o.Duration.Milliseconds()); err != nil {
			return wrap(ErrRecordFailed, fmt.Errorf("insert outcome %s: %w", o.Input, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return wrap(ErrRecordFailed, err)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, started, duration_ms, skipped, succeeded, failed FROM runs ORDER BY started DESC, rowid DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, wrap(ErrQueryFailed, err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started, durationMS int64
		if err := rows.Scan(&r.ID, &started, &durationMS, &r.Skipped, &r.Succeeded, &r.Failed); err != nil {
			return nil, wrap(ErrQueryFailed, fmt.Errorf("scan run: %w", err))
		}
		r.Started = time.UnixMilli(started)
		r.Duration = time.Duration(durationMS) * time.Millisecond
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(ErrQueryFailed, fmt.Errorf("iterate rows: %w", err))
	}
	return runs, nil
}

// Outcomes returns the outcomes recorded for runID in dispatch order.
func (s *SQLiteStore) Outcomes(ctx context.Context, runID string) ([]FileOutcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT input, output, status, COALESCE(reason, ''), COALESCE(error, ''), duration_ms FROM outcomes WHERE run_id = ? ORDER BY seq",
		runID,
	)
	if err != nil {
		return nil, wrap(ErrQueryFailed, err)
	}
	defer rows.Close()

	var outcomes []FileOutcome
	for rows.Next() {
		var o FileOutcome
		var durationMS int64
		if err := rows.Scan(&o.Input, &o.Output, &o.Status, &o.Reason, &o.Error, &durationMS); err != nil {
			return nil, wrap(ErrQueryFailed, fmt.Errorf("scan outcome: %w", err))
		}
		o.Duration = time.Duration(durationMS) * time.Millisecond
		outcomes = append(outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(ErrQueryFailed, fmt.Errorf("iterate rows: %w", err))
	}
	return outcomes, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
