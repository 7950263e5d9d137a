package smoke

import (
	"context"
	"testing"
	"time"

	smerrors "git.home.luguber.info/inful/docsmoke/internal/errors"
	"git.home.luguber.info/inful/docsmoke/internal/examples"
	"git.home.luguber.info/inful/docsmoke/internal/store"
	"git.home.luguber.info/inful/docsmoke/internal/toolchain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubToolchain scripts per-example compile and run results.
type stubToolchain struct {
	sig        string
	compileErr map[string]int // example name -> compiler exit code
	runErr     map[string]int // example name -> binary exit code
	timeout    map[string]bool
	compiled   []string
	ran        []string
}

func (s *stubToolchain) Signature() string {
	if s.sig == "" {
		return "stub-sig"
	}
	return s.sig
}

func (s *stubToolchain) Compile(_ context.Context, ex examples.Example) (string, toolchain.Result, error) {
	s.compiled = append(s.compiled, ex.Name)
	if code, ok := s.compileErr[ex.Name]; ok {
		return "", toolchain.Result{ExitCode: code, Output: []byte("error: nope"), Duration: time.Millisecond}, nil
	}
	return "/tmp/bin/" + ex.BinaryName(), toolchain.Result{Duration: time.Millisecond}, nil
}

func (s *stubToolchain) Run(_ context.Context, bin string) (toolchain.Result, error) {
	s.ran = append(s.ran, bin)
	for name, code := range s.runErr {
		if bin == "/tmp/bin/"+(examples.Example{Name: name}).BinaryName() {
			return toolchain.Result{ExitCode: code, Output: []byte("boom"), Duration: time.Millisecond}, nil
		}
	}
	for name, timedOut := range s.timeout {
		if timedOut && bin == "/tmp/bin/"+(examples.Example{Name: name}).BinaryName() {
			return toolchain.Result{ExitCode: -1, TimedOut: true, Duration: time.Second}, nil
		}
	}
	return toolchain.Result{Duration: time.Millisecond}, nil
}

// memStore is an in-memory store.Store for pipeline tests.
type memStore struct {
	runs    []store.RunRecord
	results []store.ExampleResult
	passes  map[string]store.PassKey
}

func newMemStore() *memStore { return &memStore{passes: make(map[string]store.PassKey)} }

func (m *memStore) SaveRun(_ context.Context, run *store.RunRecord) error {
	m.runs = append(m.runs, *run)
	return nil
}

func (m *memStore) SaveExampleResult(_ context.Context, res store.ExampleResult) error {
	m.results = append(m.results, res)
	return nil
}

func (m *memStore) MarkPassed(_ context.Context, name string, key store.PassKey) error {
	m.passes[name] = key
	return nil
}

func (m *memStore) PassKeys(_ context.Context) (map[string]store.PassKey, error) {
	out := make(map[string]store.PassKey, len(m.passes))
	for k, v := range m.passes {
		out[k] = v
	}
	return out, nil
}

func (m *memStore) RecentRuns(_ context.Context, _ int) ([]store.RunRecord, error) {
	return m.runs, nil
}

func (m *memStore) ResultsForRun(_ context.Context, _ string) ([]store.ExampleResult, error) {
	return m.results, nil
}

func (m *memStore) Close() error { return nil }

func corpus(names ...string) []examples.Example {
	out := make([]examples.Example, 0, len(names))
	for _, n := range names {
		content := []byte("int main() { /* " + n + " */ }")
		out = append(out, examples.Example{
			Name:    n,
			Kind:    examples.KindFile,
			Content: content,
			Hash:    examples.HashBytes(content),
		})
	}
	return out
}

func TestPipelineAllPass(t *testing.T) {
	tc := &stubToolchain{}
	st := newMemStore()
	p := NewPipeline(tc, st, nil, nil)

	summary, err := p.Run(context.Background(), corpus("a", "b", "c"), Options{})
	require.NoError(t, err)
	assert.Equal(t, store.OutcomeSuccess, summary.Run.Outcome)
	assert.Equal(t, 3, summary.Run.Total)
	assert.Equal(t, 3, summary.Run.Passed)
	assert.Nil(t, summary.FirstFailure)
	assert.Len(t, tc.compiled, 3)
	assert.Len(t, st.passes, 3)
	require.Len(t, st.runs, 1)
	assert.Equal(t, 0, st.runs[0].ExitCode)
}

func TestPipelineCompileFailureStopsRun(t *testing.T) {
	tc := &stubToolchain{compileErr: map[string]int{"b": 1}}
	st := newMemStore()
	p := NewPipeline(tc, st, nil, nil)

	summary, err := p.Run(context.Background(), corpus("a", "b", "c"), Options{})
	require.Error(t, err)
	assert.True(t, smerrors.IsCategory(err, smerrors.CategoryCompile))
	assert.Equal(t, 1, smerrors.GetExitCode(err))

	require.NotNil(t, summary.FirstFailure)
	assert.Equal(t, "b", summary.FirstFailure.Example)
	assert.Equal(t, store.StatusCompileFailed, summary.FirstFailure.Status)
	assert.Equal(t, store.OutcomeFailed, summary.Run.Outcome)
	assert.Equal(t, "b", summary.Run.FailureExample)

	// c must never be attempted
	assert.Equal(t, []string{"a", "b"}, tc.compiled)
}

func TestPipelineRunFailurePropagatesExitCode(t *testing.T) {
	tc := &stubToolchain{runErr: map[string]int{"a": 42}}
	p := NewPipeline(tc, nil, nil, nil)

	summary, err := p.Run(context.Background(), corpus("a", "b"), Options{})
	require.Error(t, err)
	assert.True(t, smerrors.IsCategory(err, smerrors.CategoryRun))
	assert.Equal(t, 42, smerrors.GetExitCode(err))
	require.NotNil(t, summary.FirstFailure)
	assert.Equal(t, 42, summary.FirstFailure.ExitCode)
	assert.Equal(t, "boom", summary.FirstFailure.Output)
}

func TestPipelineKeepGoing(t *testing.T) {
	tc := &stubToolchain{runErr: map[string]int{"a": 3}}
	p := NewPipeline(tc, nil, nil, nil)

	summary, err := p.Run(context.Background(), corpus("a", "b", "c"), Options{KeepGoing: true})
	require.Error(t, err)
	// later examples still ran
	assert.Equal(t, []string{"a", "b", "c"}, tc.compiled)
	assert.Equal(t, 2, summary.Run.Passed)
	assert.Equal(t, 1, summary.Run.Failed)
	// exit code still reflects the first failure
	assert.Equal(t, 3, smerrors.GetExitCode(err))
}

func TestPipelineTimeoutFailure(t *testing.T) {
	tc := &stubToolchain{timeout: map[string]bool{"slow": true}}
	p := NewPipeline(tc, nil, nil, nil)

	summary, err := p.Run(context.Background(), corpus("slow"), Options{})
	require.Error(t, err)
	assert.True(t, smerrors.IsCategory(err, smerrors.CategoryRun))
	require.NotNil(t, summary.FirstFailure)
	assert.Equal(t, store.StatusTimedOut, summary.FirstFailure.Status)
	// no child status to propagate, the CLI adapter falls back to its own code
	assert.Equal(t, 0, smerrors.GetExitCode(err))
	assert.Equal(t, 11, summary.Run.ExitCode)
}

func TestPipelineIncrementalSkip(t *testing.T) {
	all := corpus("a", "b")
	tc := &stubToolchain{}
	st := newMemStore()
	st.passes["a"] = store.PassKey{ContentHash: all[0].Hash, ToolchainSig: "stub-sig"}

	p := NewPipeline(tc, st, nil, nil)
	summary, err := p.Run(context.Background(), all, Options{Incremental: true})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Run.Skipped)
	assert.Equal(t, 1, summary.Run.Passed)
	assert.Equal(t, []string{"b"}, tc.compiled)
}

func TestPipelineIncrementalRechecksOnToolchainChange(t *testing.T) {
	all := corpus("a")
	tc := &stubToolchain{sig: "new-sig"}
	st := newMemStore()
	st.passes["a"] = store.PassKey{ContentHash: all[0].Hash, ToolchainSig: "old-sig"}

	p := NewPipeline(tc, st, nil, nil)
	summary, err := p.Run(context.Background(), all, Options{Incremental: true})
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Run.Skipped)
	assert.Equal(t, []string{"a"}, tc.compiled)
}

func TestPipelineFilter(t *testing.T) {
	tc := &stubToolchain{}
	p := NewPipeline(tc, nil, nil, nil)

	summary, err := p.Run(context.Background(), corpus("tips/a", "guide/b"), Options{Filter: "tips"})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Run.Total)
	assert.Equal(t, []string{"tips/a"}, tc.compiled)
}

// cancelingToolchain simulates shutdown arriving while an example runs.
type cancelingToolchain struct {
	stubToolchain
	cancel context.CancelFunc
	on     string
}

func (c *cancelingToolchain) Run(ctx context.Context, bin string) (toolchain.Result, error) {
	if bin == "/tmp/bin/"+c.on {
		c.cancel()
		return toolchain.Result{ExitCode: -1}, ctx.Err()
	}
	return c.stubToolchain.Run(ctx, bin)
}

func TestPipelineShutdownMidRunIsCanceledNotFailed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tc := &cancelingToolchain{cancel: cancel, on: "b"}
	st := newMemStore()
	p := NewPipeline(tc, st, nil, nil)

	summary, err := p.Run(ctx, corpus("a", "b", "c"), Options{})
	require.Error(t, err)
	assert.True(t, smerrors.IsCategory(err, smerrors.CategoryDaemon))
	assert.Equal(t, store.OutcomeCanceled, summary.Run.Outcome)
	assert.Zero(t, summary.Run.Failed, "a killed example is not a failure")
	assert.NotContains(t, tc.compiled, "c")
}

func TestPipelineCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tc := &stubToolchain{}
	st := newMemStore()
	p := NewPipeline(tc, st, nil, nil)

	summary, err := p.Run(ctx, corpus("a"), Options{})
	require.Error(t, err)
	assert.True(t, smerrors.IsCategory(err, smerrors.CategoryDaemon))
	assert.Equal(t, store.OutcomeCanceled, summary.Run.Outcome)
	assert.Empty(t, tc.compiled)
}

// recordingSink captures published events.
type recordingSink struct {
	completed []store.RunRecord
	failed    []string
}

func (r *recordingSink) PublishRunCompleted(_ context.Context, run *store.RunRecord) error {
	r.completed = append(r.completed, *run)
	return nil
}

func (r *recordingSink) PublishExampleFailed(_ context.Context, _, example, _ string, _ int, _ string) error {
	r.failed = append(r.failed, example)
	return nil
}

func TestPipelinePublishesEvents(t *testing.T) {
	tc := &stubToolchain{runErr: map[string]int{"a": 1}}
	sink := &recordingSink{}
	p := NewPipeline(tc, nil, nil, sink)

	_, err := p.Run(context.Background(), corpus("a"), Options{})
	require.Error(t, err)
	require.Len(t, sink.completed, 1)
	assert.Equal(t, store.OutcomeFailed, sink.completed[0].Outcome)
	assert.Equal(t, []string{"a"}, sink.failed)
}
