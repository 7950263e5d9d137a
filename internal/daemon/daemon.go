package daemon

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"git.home.luguber.info/inful/docsmoke/internal/config"
	"git.home.luguber.info/inful/docsmoke/internal/logfields"
	"git.home.luguber.info/inful/docsmoke/internal/smoke"
	"git.home.luguber.info/inful/docsmoke/internal/store"
)

// Runner is the smoke surface the daemon drives. *smoke.Service implements it.
type Runner interface {
	Check(ctx context.Context, opts smoke.Options) (*smoke.Summary, error)
}

// Daemon runs smoke checks continuously: once on startup, then on every
// debounced source change and on the configured interval. Runs are
// serialized; triggers arriving mid-run coalesce into one follow-up.
type Daemon struct {
	cfg     *config.Config
	runner  Runner
	opts    smoke.Options
	watcher *SourceWatcher
	sched   *Scheduler
	server  *Server

	mu        sync.RWMutex
	startedAt time.Time
	running   bool
	runsTotal int
	lastRun   *store.RunRecord
	lastErr   error
}

// New wires a daemon from config. metricsHandler may be nil to disable the
// /metrics endpoint.
func New(cfg *config.Config, runner Runner, opts smoke.Options, metricsHandler http.Handler) (*Daemon, error) {
	watcher, err := NewSourceWatcher(cfg.Sources, cfg.Daemon.Debounce)
	if err != nil {
		return nil, err
	}
	sched, err := NewScheduler()
	if err != nil {
		return nil, err
	}
	d := &Daemon{
		cfg:     cfg,
		runner:  runner,
		opts:    opts,
		watcher: watcher,
		sched:   sched,
	}
	d.server = NewServer(cfg.Daemon.Listen, d, metricsHandler)
	return d, nil
}

// Run blocks until ctx is canceled.
func (d *Daemon) Run(ctx context.Context) error {
	d.mu.Lock()
	d.startedAt = time.Now()
	d.mu.Unlock()

	if err := d.watcher.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := d.watcher.Stop(); err != nil {
			slog.Warn("Failed to stop source watcher", logfields.Error(err))
		}
	}()

	if d.cfg.Daemon.Interval > 0 {
		if _, err := d.sched.SchedulePeriodicRun(d.cfg.Daemon.Interval); err != nil {
			return err
		}
		d.sched.Start(ctx)
		defer func() {
			if err := d.sched.Stop(ctx); err != nil {
				slog.Warn("Failed to stop scheduler", logfields.Error(err))
			}
		}()
	}

	if d.server != nil {
		go d.server.Start()
		defer func() {
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := d.server.Shutdown(shutCtx); err != nil {
				slog.Warn("Failed to shut down HTTP server", logfields.Error(err))
			}
		}()
	}

	// Initial run so a freshly started daemon reports real state.
	d.runOnce(ctx, "startup")

	for {
		select {
		case <-ctx.Done():
			slog.Info("Daemon shutting down")
			return nil
		case <-d.watcher.Triggers():
			d.runOnce(ctx, "source_change")
		case <-d.sched.Triggers():
			d.runOnce(ctx, "schedule")
		}
	}
}

// runOnce executes one smoke run and records its outcome. Daemon runs never
// abort the loop on failure; the result is surfaced via /status and metrics.
func (d *Daemon) runOnce(ctx context.Context, reason string) {
	if ctx.Err() != nil {
		return
	}
	d.mu.Lock()
	d.running = true
	d.mu.Unlock()

	slog.Info("Starting smoke run", slog.String("reason", reason))
	summary, err := d.runner.Check(ctx, d.opts)

	d.mu.Lock()
	d.running = false
	d.runsTotal++
	d.lastErr = err
	if summary != nil {
		run := summary.Run
		d.lastRun = &run
	}
	d.mu.Unlock()

	if err != nil {
		slog.Error("Smoke run failed", slog.String("reason", reason), logfields.Error(err))
	}
}

// Status implements StatusProvider.
func (d *Daemon) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()

	st := Status{
		State:     "idle",
		StartedAt: d.startedAt,
		RunsTotal: d.runsTotal,
		LastRun:   d.lastRun,
	}
	if d.running {
		st.State = "running"
	}
	if d.lastErr != nil {
		st.LastError = d.lastErr.Error()
	}
	return st
}
