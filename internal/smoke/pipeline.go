package smoke

import (
	"context"
	"log/slog"
	"strings"
	"time"

	smerrors "git.home.luguber.info/inful/docsmoke/internal/errors"
	"git.home.luguber.info/inful/docsmoke/internal/examples"
	"git.home.luguber.info/inful/docsmoke/internal/logfields"
	"git.home.luguber.info/inful/docsmoke/internal/metrics"
	"git.home.luguber.info/inful/docsmoke/internal/store"
	"git.home.luguber.info/inful/docsmoke/internal/toolchain"
	"github.com/google/uuid"
)

// CompilerRunner is the toolchain surface the loop needs. *toolchain.Toolchain
// implements it; tests substitute stubs.
type CompilerRunner interface {
	Signature() string
	Compile(ctx context.Context, ex examples.Example) (string, toolchain.Result, error)
	Run(ctx context.Context, binPath string) (toolchain.Result, error)
}

// Pipeline runs the sequential compile-and-smoke-test loop.
type Pipeline struct {
	tc       CompilerRunner
	results  store.Store      // optional
	recorder metrics.Recorder // never nil, defaults to noop
	events   EventSink        // optional
}

// NewPipeline wires a pipeline. results and events may be nil.
func NewPipeline(tc CompilerRunner, results store.Store, recorder metrics.Recorder, events EventSink) *Pipeline {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Pipeline{tc: tc, results: results, recorder: recorder, events: events}
}

// Run checks every example in order. On the first failure the loop stops
// (unless KeepGoing) and the returned error carries the failing step's exit
// code. The Summary is returned even when err != nil.
func (p *Pipeline) Run(ctx context.Context, all []examples.Example, opts Options) (*Summary, error) {
	runID := uuid.NewString()
	sig := p.tc.Signature()

	summary := &Summary{Run: store.RunRecord{
		ID:           runID,
		StartedAt:    time.Now(),
		ToolchainSig: sig,
	}}

	corpusHash, err := examples.ComputeCorpusHash(all)
	if err != nil {
		return summary, smerrors.Wrap(err, smerrors.CategoryInternal, smerrors.SeverityFatal, "corpus hash failed")
	}
	summary.Run.CorpusHash = corpusHash

	var passKeys map[string]store.PassKey
	if opts.Incremental && p.results != nil {
		passKeys, err = p.results.PassKeys(ctx)
		if err != nil {
			return summary, smerrors.Wrap(err, smerrors.CategoryInternal, smerrors.SeverityFatal, "load pass keys")
		}
	}

	var firstErr error
	for _, ex := range all {
		if opts.Filter != "" && !strings.Contains(ex.Name, opts.Filter) {
			continue
		}
		summary.Run.Total++

		if ctx.Err() != nil {
			firstErr = p.finishCanceled(ctx, summary)
			return summary, firstErr
		}

		if key, ok := passKeys[ex.Name]; ok && key.ContentHash == ex.Hash && key.ToolchainSig == sig {
			slog.Debug("Skipping unchanged example", logfields.RunID(runID), logfields.Example(ex.Name))
			summary.Run.Skipped++
			p.recorder.IncExampleResult(store.StatusSkipped)
			p.saveResult(ctx, store.ExampleResult{RunID: runID, Name: ex.Name, Kind: string(ex.Kind), ContentHash: ex.Hash, Status: store.StatusSkipped})
			continue
		}

		failure, err := p.checkOne(ctx, runID, sig, ex)
		if err != nil {
			if ctx.Err() != nil {
				// The example was killed by shutdown, not by its own fault.
				firstErr = p.finishCanceled(ctx, summary)
				return summary, firstErr
			}
			// Infrastructure failure (compiler missing, fs error): abort outright.
			return summary, err
		}
		if failure == nil {
			summary.Run.Passed++
			continue
		}

		summary.Run.Failed++
		if summary.FirstFailure == nil {
			summary.FirstFailure = failure
			firstErr = failureError(failure)
		}
		if !opts.KeepGoing {
			break
		}
	}

	p.finish(ctx, summary)
	return summary, firstErr
}

// checkOne compiles and runs a single example. A nil, nil return means pass.
func (p *Pipeline) checkOne(ctx context.Context, runID, sig string, ex examples.Example) (*Failure, error) {
	slog.Info("Checking example", logfields.RunID(runID), logfields.Example(ex.Name))

	result := store.ExampleResult{RunID: runID, Name: ex.Name, Kind: string(ex.Kind), ContentHash: ex.Hash}

	bin, compileRes, err := p.tc.Compile(ctx, ex)
	if err != nil {
		return nil, smerrors.Wrap(err, smerrors.CategoryToolchain, smerrors.SeverityFatal, "compiler invocation failed").
			WithContext("example", ex.Name)
	}
	result.CompileMS = float64(compileRes.Duration.Milliseconds())
	p.recorder.ObserveCompileDuration(compileRes.Duration, compileRes.OK())

	if !compileRes.OK() {
		slog.Error("Example failed to compile",
			logfields.Example(ex.Name), logfields.ExitCode(compileRes.ExitCode), slog.String("output", string(compileRes.Output)))
		result.Status = store.StatusCompileFailed
		result.ExitCode = compileRes.ExitCode
		p.recorder.IncExampleResult(store.StatusCompileFailed)
		p.saveResult(ctx, result)
		return &Failure{Example: ex.Name, Status: store.StatusCompileFailed, ExitCode: compileRes.ExitCode, Output: string(compileRes.Output)}, nil
	}

	runRes, err := p.tc.Run(ctx, bin)
	if err != nil {
		return nil, smerrors.Wrap(err, smerrors.CategoryToolchain, smerrors.SeverityFatal, "example invocation failed").
			WithContext("example", ex.Name)
	}
	result.RunMS = float64(runRes.Duration.Milliseconds())
	p.recorder.ObserveRunDuration(runRes.Duration, runRes.OK())

	if runRes.TimedOut {
		slog.Error("Example timed out", logfields.Example(ex.Name))
		result.Status = store.StatusTimedOut
		result.ExitCode = runRes.ExitCode
		p.recorder.IncExampleResult(store.StatusTimedOut)
		p.saveResult(ctx, result)
		return &Failure{Example: ex.Name, Status: store.StatusTimedOut, ExitCode: runRes.ExitCode, Output: string(runRes.Output)}, nil
	}
	if !runRes.OK() {
		slog.Error("Example exited non-zero",
			logfields.Example(ex.Name), logfields.ExitCode(runRes.ExitCode), slog.String("output", string(runRes.Output)))
		result.Status = store.StatusRunFailed
		result.ExitCode = runRes.ExitCode
		p.recorder.IncExampleResult(store.StatusRunFailed)
		p.saveResult(ctx, result)
		return &Failure{Example: ex.Name, Status: store.StatusRunFailed, ExitCode: runRes.ExitCode, Output: string(runRes.Output)}, nil
	}

	result.Status = store.StatusPassed
	p.recorder.IncExampleResult(store.StatusPassed)
	p.saveResult(ctx, result)
	if p.results != nil {
		if err := p.results.MarkPassed(ctx, ex.Name, store.PassKey{ContentHash: ex.Hash, ToolchainSig: sig}); err != nil {
			slog.Warn("Failed to record pass key", logfields.Example(ex.Name), logfields.Error(err))
		}
	}
	return nil, nil
}

// failureError converts the first failure into the error the CLI propagates.
func failureError(f *Failure) error {
	switch f.Status {
	case store.StatusCompileFailed:
		return smerrors.CompileFailure(f.Example, f.ExitCode, nil)
	case store.StatusTimedOut:
		return smerrors.New(smerrors.CategoryRun, smerrors.SeverityFatal, "example "+f.Example+" timed out").
			WithContext("example", f.Example)
	default:
		return smerrors.RunFailure(f.Example, f.ExitCode, nil)
	}
}

// finish closes out the run record and emits events.
func (p *Pipeline) finish(ctx context.Context, summary *Summary) {
	summary.Run.FinishedAt = time.Now()
	if summary.FirstFailure != nil {
		summary.Run.Outcome = store.OutcomeFailed
		summary.Run.FailureExample = summary.FirstFailure.Example
		summary.Run.ExitCode = smerrors.GetExitCode(failureError(summary.FirstFailure))
		if summary.Run.ExitCode == 0 {
			summary.Run.ExitCode = 11 // timeout and friends have no child status
		}
	} else {
		summary.Run.Outcome = store.OutcomeSuccess
	}
	p.recorder.IncRunOutcome(summary.Run.Outcome)
	p.saveRun(ctx, summary)
	p.publish(ctx, summary)

	slog.Info("Smoke run finished",
		logfields.RunID(summary.Run.ID),
		slog.String("outcome", summary.Run.Outcome),
		slog.Int("total", summary.Run.Total),
		slog.Int("passed", summary.Run.Passed),
		slog.Int("skipped", summary.Run.Skipped),
		slog.Int("failed", summary.Run.Failed))
}

// finishCanceled closes out a run interrupted by context cancellation.
func (p *Pipeline) finishCanceled(ctx context.Context, summary *Summary) error {
	summary.Run.FinishedAt = time.Now()
	summary.Run.Outcome = store.OutcomeCanceled
	p.recorder.IncRunOutcome(store.OutcomeCanceled)
	p.saveRun(ctx, summary)
	return smerrors.Wrap(ctx.Err(), smerrors.CategoryDaemon, smerrors.SeverityError, "run canceled")
}

func (p *Pipeline) saveResult(ctx context.Context, res store.ExampleResult) {
	if p.results == nil {
		return
	}
	if err := p.results.SaveExampleResult(ctx, res); err != nil {
		slog.Warn("Failed to persist example result", logfields.Example(res.Name), logfields.Error(err))
	}
}

func (p *Pipeline) saveRun(ctx context.Context, summary *Summary) {
	if p.results == nil {
		return
	}
	if err := p.results.SaveRun(ctx, &summary.Run); err != nil {
		slog.Warn("Failed to persist run record", logfields.RunID(summary.Run.ID), logfields.Error(err))
	}
}

func (p *Pipeline) publish(ctx context.Context, summary *Summary) {
	if p.events == nil {
		return
	}
	if err := p.events.PublishRunCompleted(ctx, &summary.Run); err != nil {
		slog.Warn("Failed to publish run event", logfields.RunID(summary.Run.ID), logfields.Error(err))
	}
	if f := summary.FirstFailure; f != nil {
		if err := p.events.PublishExampleFailed(ctx, summary.Run.ID, f.Example, f.Status, f.ExitCode, f.Output); err != nil {
			slog.Warn("Failed to publish failure event", logfields.RunID(summary.Run.ID), logfields.Error(err))
		}
	}
}
