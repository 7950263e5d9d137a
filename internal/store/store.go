// Package store persists smoke run history and the pass keys incremental
// mode skips against.
package store

import (
	"context"
	"time"
)

// Run outcome values.
const (
	OutcomeSuccess  = "success"
	OutcomeFailed   = "failed"
	OutcomeCanceled = "canceled"
)

// Example result status values.
const (
	StatusPassed        = "passed"
	StatusCompileFailed = "compile_failed"
	StatusRunFailed     = "run_failed"
	StatusTimedOut      = "timed_out"
	StatusSkipped       = "skipped"
)

// RunRecord summarizes one smoke run. It is served verbatim on the daemon's
// /status endpoint, so field names follow the event payload convention.
type RunRecord struct {
	ID             string    `json:"id"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	Outcome        string    `json:"outcome"`
	CorpusHash     string    `json:"corpus_hash"`
	ToolchainSig   string    `json:"toolchain_sig"`
	Total          int       `json:"total"`
	Passed         int       `json:"passed"`
	Skipped        int       `json:"skipped"`
	Failed         int       `json:"failed"`
	FailureExample string    `json:"failure_example,omitempty"` // first failing example, empty on success
	ExitCode       int       `json:"exit_code"` // propagated exit code, 0 on success
}

// ExampleResult records one example's fate within a run.
type ExampleResult struct {
	RunID       string
	Name        string
	Kind        string
	ContentHash string
	Status      string
	ExitCode    int
	CompileMS   float64
	RunMS       float64
}

// PassKey identifies the inputs under which an example last passed.
type PassKey struct {
	ContentHash  string
	ToolchainSig string
}

// Store is the persistence interface the pipeline records against.
type Store interface {
	SaveRun(ctx context.Context, run *RunRecord) error
	SaveExampleResult(ctx context.Context, res ExampleResult) error
	MarkPassed(ctx context.Context, name string, key PassKey) error
	PassKeys(ctx context.Context) (map[string]PassKey, error)
	RecentRuns(ctx context.Context, limit int) ([]RunRecord, error)
	ResultsForRun(ctx context.Context, runID string) ([]ExampleResult, error)
	Close() error
}
