package metrics

import "time"

// Recorder defines observability hooks for smoke runs. Implementations may
// forward to Prometheus, OpenTelemetry, etc. All methods must be safe on the
// NoopRecorder (allowing optional injection).
type Recorder interface {
	ObserveCompileDuration(d time.Duration, success bool)
	ObserveRunDuration(d time.Duration, success bool)
	ObserveBootstrapDuration(d time.Duration)
	IncExampleResult(status string) // status: passed|compile_failed|run_failed|timed_out|skipped
	IncRunOutcome(outcome string)   // outcome: success|failed|canceled
	IncFetchRetry(op string)        // op: clone|pull|download
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveCompileDuration(time.Duration, bool) {}
func (NoopRecorder) ObserveRunDuration(time.Duration, bool)     {}
func (NoopRecorder) ObserveBootstrapDuration(time.Duration)     {}
func (NoopRecorder) IncExampleResult(string)                    {}
func (NoopRecorder) IncRunOutcome(string)                       {}
func (NoopRecorder) IncFetchRetry(string)                       {}
