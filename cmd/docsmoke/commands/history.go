package commands

import (
	"context"
	"fmt"
	"time"

	"git.home.luguber.info/inful/docsmoke/internal/config"
	"git.home.luguber.info/inful/docsmoke/internal/store"
)

// HistoryCmd implements the 'history' command: print recent runs.
type HistoryCmd struct {
	Limit int    `short:"n" help:"Number of runs to show" default:"10"`
	RunID string `short:"r" name:"run" help:"Show per-example results for a specific run ID"`
}

func (h *HistoryCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	st, err := store.NewSQLiteStore(cfg.State.Path)
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}
	defer func() { _ = st.Close() }()

	ctx := context.Background()

	if h.RunID != "" {
		return printRunResults(ctx, st, h.RunID)
	}

	runs, err := st.RecentRuns(ctx, h.Limit)
	if err != nil {
		return fmt.Errorf("load run history: %w", err)
	}
	if len(runs) == 0 {
		fmt.Println("no runs recorded")
		return nil
	}

	for _, run := range runs {
		line := fmt.Sprintf("%s  %s  %-8s  %d/%d passed",
			run.StartedAt.Format(time.RFC3339), run.ID, run.Outcome, run.Passed, run.Total)
		if run.Skipped > 0 {
			line += fmt.Sprintf(", %d skipped", run.Skipped)
		}
		if run.FailureExample != "" {
			line += fmt.Sprintf("  first failure: %s (exit %d)", run.FailureExample, run.ExitCode)
		}
		fmt.Println(line)
	}
	return nil
}

func printRunResults(ctx context.Context, st store.Store, runID string) error {
	results, err := st.ResultsForRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("load results for run %s: %w", runID, err)
	}
	if len(results) == 0 {
		fmt.Printf("no results for run %s\n", runID)
		return nil
	}
	for _, res := range results {
		fmt.Printf("%-50s %-15s exit=%d compile=%.0fms run=%.0fms\n",
			res.Name, res.Status, res.ExitCode, res.CompileMS, res.RunMS)
	}
	return nil
}
