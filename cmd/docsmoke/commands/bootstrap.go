package commands

import (
	"context"
	"fmt"
	"os/signal"
	"sort"
	"syscall"

	"git.home.luguber.info/inful/docsmoke/internal/config"
)

// BootstrapCmd implements the 'bootstrap' command: fetch dependencies only.
type BootstrapCmd struct{}

func (b *BootstrapCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	deps := buildService(cfg, nil)
	defer deps.Close()

	layout, err := deps.Service.Bootstrap(ctx)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(layout.Paths))
	for name := range layout.Paths {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("%s\t%s\n", name, layout.Paths[name])
	}
	return nil
}
