package smoke

import (
	"context"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/docsmoke/internal/config"
	"git.home.luguber.info/inful/docsmoke/internal/deps"
	smerrors "git.home.luguber.info/inful/docsmoke/internal/errors"
	"git.home.luguber.info/inful/docsmoke/internal/examples"
	"git.home.luguber.info/inful/docsmoke/internal/logfields"
	"git.home.luguber.info/inful/docsmoke/internal/metrics"
	"git.home.luguber.info/inful/docsmoke/internal/retry"
	"git.home.luguber.info/inful/docsmoke/internal/store"
	"git.home.luguber.info/inful/docsmoke/internal/toolchain"
	"git.home.luguber.info/inful/docsmoke/internal/workspace"
)

// Service ties config, bootstrap, discovery and the pipeline together. The
// CLI check command and the daemon both run through it.
type Service struct {
	cfg      *config.Config
	results  store.Store      // optional
	recorder metrics.Recorder // never nil
	events   EventSink        // optional
}

// NewService creates a service. results and events may be nil; recorder
// defaults to noop.
func NewService(cfg *config.Config, results store.Store, recorder metrics.Recorder, events EventSink) *Service {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Service{cfg: cfg, results: results, recorder: recorder, events: events}
}

// Bootstrap ensures the build directory and every declared dependency exist.
func (s *Service) Bootstrap(ctx context.Context) (*deps.Layout, error) {
	_ = ctx

	policy := retry.FromConfig(s.cfg.Retry)
	ws := workspace.NewPersistentManager(s.cfg.BuildDir)
	boot, err := deps.NewBootstrapper(ws, policy, s.recorder)
	if err != nil {
		return nil, smerrors.Wrap(err, smerrors.CategoryFileSystem, smerrors.SeverityFatal, "prepare build directory")
	}

	start := time.Now()
	layout, err := boot.Ensure(s.cfg.Dependencies)
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)
	s.recorder.ObserveBootstrapDuration(elapsed)
	slog.Info("Bootstrap complete", logfields.Path(ws.Path()), logfields.DurationMS(float64(elapsed.Milliseconds())))
	return layout, nil
}

// Discover enumerates the example corpus without compiling anything.
func (s *Service) Discover() ([]examples.Example, error) {
	return examples.NewDiscovery(s.cfg.Sources).Discover()
}

// Check runs the full smoke cycle: bootstrap, discover, compile and run every
// example. The returned error, if any, reflects the first failure.
func (s *Service) Check(ctx context.Context, opts Options) (*Summary, error) {
	layout, err := s.Bootstrap(ctx)
	if err != nil {
		return nil, err
	}

	all, err := s.Discover()
	if err != nil {
		return nil, smerrors.Wrap(err, smerrors.CategoryFileSystem, smerrors.SeverityFatal, "example discovery failed")
	}
	if len(all) == 0 {
		slog.Warn("No examples found, nothing to check")
	}

	ws := workspace.NewPersistentManager(s.cfg.BuildDir)
	if err := ws.Create(); err != nil {
		return nil, smerrors.Wrap(err, smerrors.CategoryFileSystem, smerrors.SeverityFatal, "prepare build directory")
	}
	binDir, err := ws.Subdir("bin")
	if err != nil {
		return nil, smerrors.Wrap(err, smerrors.CategoryFileSystem, smerrors.SeverityFatal, "prepare binary directory")
	}

	tc := toolchain.New(s.cfg.Toolchain, layout.IncludeDirs, binDir)
	pipeline := NewPipeline(tc, s.results, s.recorder, s.events)
	return pipeline.Run(ctx, all, opts)
}
