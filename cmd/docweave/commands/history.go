package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/docweave/internal/config"
	"git.home.luguber.info/inful/docweave/internal/foundation/errors"
	"git.home.luguber.info/inful/docweave/internal/ledger"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	HistoryDB string `name:"history-db" help:"SQLite file recording run history (default: history_db from config)"`
	Limit     int    `short:"n" help:"Number of runs to list" default:"10"`
	RunID     string `name:"run" help:"Show the per-file outcomes of one run"`
}

func (h *HistoryCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root, func(c *config.Config) {
		if h.HistoryDB != "" {
			c.HistoryDB = h.HistoryDB
		}
	})
	if err != nil {
		return err
	}
	if cfg.HistoryDB == "" {
		return errors.ConfigError("history database is not configured").
			WithContext("setting", "history_db").
			Build()
	}

	store, err := ledger.NewSQLiteStore(cfg.HistoryDB)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if h.RunID != "" {
		return printOutcomes(context.Background(), os.Stdout, store, h.RunID)
	}
	return printRuns(context.Background(), os.Stdout, store, h.Limit)
}

func printRuns(ctx context.Context, out io.Writer, store ledger.Store, limit int) error {
	runs, err := store.Recent(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTARTED\tDURATION\tFILES\tSUCCEEDED\tSKIPPED\tFAILED")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
			r.ID, r.Started.Local().Format(time.DateTime), r.Duration.Round(time.Millisecond),
			r.Total(), r.Succeeded, r.Skipped, r.Failed)
	}
	return w.Flush()
}

func printOutcomes(ctx context.Context, out io.Writer, store ledger.Store, runID string) error {
	outcomes, err := store.Outcomes(ctx, runID)
	if err != nil {
		return err
	}
	if len(outcomes) == 0 {
		return errors.NewError(errors.CategoryNotFound, "run not found").
			WithContext("run_id", runID).
			Build()
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "INPUT\tSTATUS\tREASON\tERROR")
	for _, o := range outcomes {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", o.Input, o.Status, o.Reason, o.Error)
	}
	return w.Flush()
}
