// Package commands implements the docsmoke CLI subcommands.
package commands

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/docsmoke/internal/config"
	"git.home.luguber.info/inful/docsmoke/internal/events"
	"git.home.luguber.info/inful/docsmoke/internal/logfields"
	"git.home.luguber.info/inful/docsmoke/internal/metrics"
	"git.home.luguber.info/inful/docsmoke/internal/smoke"
	"git.home.luguber.info/inful/docsmoke/internal/store"
)

// Global context passed to subcommands if we need to share global state later.
type Global struct {
	Logger *slog.Logger
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"docsmoke.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Check     CheckCmd     `cmd:"" help:"Bootstrap dependencies, then compile and run every documentation example"`
	Bootstrap BootstrapCmd `cmd:"" help:"Fetch dependencies into the build directory without running examples"`
	Discover  DiscoverCmd  `cmd:"" help:"List documentation examples without compiling"`
	History   HistoryCmd   `cmd:"" help:"Show recent smoke run history"`
	Daemon    DaemonCmd    `cmd:"" help:"Watch documentation sources and rerun the smoke checks continuously"`
	Init      InitCmd      `cmd:"" help:"Initialize a new configuration file"`
}

// AfterApply runs after flag parsing; setup logging once.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

// serviceDeps bundles everything a smoke service needs plus its cleanup.
type serviceDeps struct {
	Service *smoke.Service
	Store   store.Store
	Events  *events.Publisher
}

// Close releases the store and the NATS connection.
func (d *serviceDeps) Close() {
	if d.Events != nil {
		d.Events.Close()
	}
	if d.Store != nil {
		if err := d.Store.Close(); err != nil {
			slog.Warn("Failed to close state store", logfields.Error(err))
		}
	}
}

// buildService wires config into a runnable smoke service. The state store is
// best-effort: a broken store disables history and incremental mode but never
// blocks the run.
func buildService(cfg *config.Config, recorder metrics.Recorder) *serviceDeps {
	deps := &serviceDeps{}

	st, err := store.NewSQLiteStore(cfg.State.Path)
	if err != nil {
		slog.Warn("State store unavailable, history and incremental mode disabled", logfields.Error(err))
	} else {
		deps.Store = st
	}

	var sink smoke.EventSink
	if cfg.Events != nil && cfg.Events.Enabled {
		pub, err := events.NewPublisher(cfg.Events)
		if err != nil {
			slog.Warn("Event publishing unavailable", logfields.Error(err))
		} else {
			deps.Events = pub
			sink = pub
		}
	}

	deps.Service = smoke.NewService(cfg, deps.Store, recorder, sink)
	return deps
}
