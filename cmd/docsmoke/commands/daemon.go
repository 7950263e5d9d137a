package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/docsmoke/internal/config"
	"git.home.luguber.info/inful/docsmoke/internal/daemon"
	"git.home.luguber.info/inful/docsmoke/internal/metrics"
	"git.home.luguber.info/inful/docsmoke/internal/smoke"
)

// DaemonCmd implements the 'daemon' command: continuous watch-and-rerun mode.
type DaemonCmd struct {
	Incremental bool `short:"i" help:"Skip examples that already passed with identical content and toolchain" default:"true" negatable:""`
}

func (d *DaemonCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	registry := prom.NewRegistry()
	recorder := metrics.NewPrometheusRecorder(registry)

	deps := buildService(cfg, recorder)
	defer deps.Close()

	dm, err := daemon.New(cfg, deps.Service, smoke.Options{Incremental: d.Incremental}, metrics.HTTPHandler(registry))
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	return dm.Run(ctx)
}
