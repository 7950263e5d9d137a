// Package smoke orchestrates a smoke run: dependency bootstrap, example
// discovery, and the sequential compile-and-run loop with fail-fast
// exit-code propagation.
package smoke

import (
	"context"

	"git.home.luguber.info/inful/docsmoke/internal/store"
)

// Options controls one smoke run.
type Options struct {
	Incremental bool   // skip examples whose pass key matches the state store
	KeepGoing   bool   // keep checking after the first failure (exit code still reflects the first)
	Filter      string // substring filter on example names, empty means all
}

// Failure describes a failing example.
type Failure struct {
	Example  string
	Status   string // store.StatusCompileFailed, StatusRunFailed or StatusTimedOut
	ExitCode int
	Output   string
}

// Summary is the outcome of a run.
type Summary struct {
	Run          store.RunRecord
	FirstFailure *Failure
}

// EventSink receives run events. The NATS publisher implements it; a nil
// sink disables publishing.
type EventSink interface {
	PublishRunCompleted(ctx context.Context, run *store.RunRecord) error
	PublishExampleFailed(ctx context.Context, runID, example, status string, exitCode int, output string) error
}
