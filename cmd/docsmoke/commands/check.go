package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/docsmoke/internal/config"
	"git.home.luguber.info/inful/docsmoke/internal/smoke"
)

// CheckCmd implements the 'check' command: the full bootstrap-compile-run cycle.
type CheckCmd struct {
	Incremental bool   `short:"i" help:"Skip examples that already passed with identical content and toolchain"`
	KeepGoing   bool   `short:"k" help:"Keep checking after the first failure (exit code still reflects the first)"`
	Filter      string `short:"f" help:"Only check examples whose name contains this substring"`
}

func (c *CheckCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	deps := buildService(cfg, nil)
	defer deps.Close()

	summary, err := deps.Service.Check(ctx, smoke.Options{
		Incremental: c.Incremental,
		KeepGoing:   c.KeepGoing,
		Filter:      c.Filter,
	})
	if summary != nil {
		printSummary(summary)
	}
	return err
}

func printSummary(s *smoke.Summary) {
	fmt.Printf("run %s: %s (%d total, %d passed, %d skipped, %d failed)\n",
		s.Run.ID, s.Run.Outcome, s.Run.Total, s.Run.Passed, s.Run.Skipped, s.Run.Failed)
	if f := s.FirstFailure; f != nil {
		fmt.Printf("first failure: %s (%s, exit code %d)\n", f.Example, f.Status, f.ExitCode)
		if f.Output != "" {
			fmt.Println(f.Output)
		}
	}
}
