package store

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

// NewSQLiteStore opens (creating if needed) the store at dbPath.
// Use ":memory:" for an in-memory database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
			return nil, fmt.Errorf("create state directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initialize(); err != nil {
		_ = db.Close() // Best effort cleanup on initialization error
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		corpus_hash TEXT NOT NULL,
		toolchain_sig TEXT NOT NULL,
		total INTEGER NOT NULL,
		passed INTEGER NOT NULL,
		skipped INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		failure_example TEXT,
		exit_code INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	CREATE TABLE IF NOT EXISTS example_results (
		run_id TEXT NOT NULL,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		status TEXT NOT NULL,
		exit_code INTEGER NOT NULL,
		compile_ms REAL NOT NULL,
		run_ms REAL NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_results_run ON example_results(run_id);

	CREATE TABLE IF NOT EXISTS example_passes (
		name TEXT PRIMARY KEY,
		content_hash TEXT NOT NULL,
		toolchain_sig TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveRun persists a completed run summary.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, finished_at, outcome, corpus_hash, toolchain_sig, total, passed, skipped, failed, failure_example, exit_code)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.Unix(), run.FinishedAt.Unix(), run.Outcome,
		run.CorpusHash, run.ToolchainSig,
		run.Total, run.Passed, run.Skipped, run.Failed,
		run.FailureExample, run.ExitCode,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// SaveExampleResult appends one example's result for a run.
func (s *SQLiteStore) SaveExampleResult(ctx context.Context, res ExampleResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO example_results (run_id, name, kind, content_hash, status, exit_code, compile_ms, run_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		res.RunID, res.Name, res.Kind, res.ContentHash, res.Status, res.ExitCode, res.CompileMS, res.RunMS,
	)
	if err != nil {
		return fmt.Errorf("insert example result: %w", err)
	}
	return nil
}

// MarkPassed upserts the pass key incremental mode compares against.
func (s *SQLiteStore) MarkPassed(ctx context.Context, name string, key PassKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO example_passes (name, content_hash, toolchain_sig, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET content_hash=excluded.content_hash, toolchain_sig=excluded.toolchain_sig, updated_at=excluded.updated_at`,
		name, key.ContentHash, key.ToolchainSig, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert pass key: %w", err)
	}
	return nil
}

// PassKeys returns the latest pass key for every example ever passed.
func (s *SQLiteStore) PassKeys(ctx context.Context) (map[string]PassKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT name, content_hash, toolchain_sig FROM example_passes`)
	if err != nil {
		return nil, fmt.Errorf("query pass keys: %w", err)
	}
	defer rows.Close()

	out := make(map[string]PassKey)
	for rows.Next() {
		var name string
		var key PassKey
		if err := rows.Scan(&name, &key.ContentHash, &key.ToolchainSig); err != nil {
			return nil, fmt.Errorf("scan pass key: %w", err)
		}
		out[name] = key
	}
	return out, rows.Err()
}

// RecentRuns returns the newest runs first.
func (s *SQLiteStore) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, outcome, corpus_hash, toolchain_sig, total, passed, skipped, failed, failure_example, exit_code
		 FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		var started, finished int64
		var failure sql.NullString
		if err := rows.Scan(&r.ID, &started, &finished, &r.Outcome, &r.CorpusHash, &r.ToolchainSig,
			&r.Total, &r.Passed, &r.Skipped, &r.Failed, &failure, &r.ExitCode); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt = time.Unix(started, 0)
		r.FinishedAt = time.Unix(finished, 0)
		r.FailureExample = failure.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// ResultsForRun returns a run's per-example results in insertion order.
func (s *SQLiteStore) ResultsForRun(ctx context.Context, runID string) ([]ExampleResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, name, kind, content_hash, status, exit_code, compile_ms, run_ms
		 FROM example_results WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var out []ExampleResult
	for rows.Next() {
		var r ExampleResult
		if err := rows.Scan(&r.RunID, &r.Name, &r.Kind, &r.ContentHash, &r.Status, &r.ExitCode, &r.CompileMS, &r.RunMS); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
