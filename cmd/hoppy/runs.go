package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/bbarnes4318/hoppy/internal/aggregator"
	"github.com/bbarnes4318/hoppy/internal/ledger"
	"github.com/bbarnes4318/hoppy/internal/types"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent runs from the ledger",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		lg, err := openLedger(ctx, cfg.Ledger.Path)
		if err != nil {
			return err
		}
		defer lg.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := lg.Runs(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "runs")
		}
		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}
		formatRuns(os.Stdout, runs)
		return nil
	},
}

var outcomesCmd = &cobra.Command{
	Use:   "outcomes <run-id>",
	Short: "Show per-item outcomes of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		lg, err := openLedger(ctx, cfg.Ledger.Path)
		if err != nil {
			return err
		}
		defer lg.Close() //nolint:errcheck

		outs, err := lg.Outcomes(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "outcomes")
		}
		if len(outs) == 0 {
			fmt.Fprintf(os.Stderr, "No outcomes for run %s.\n", args[0])
			return nil
		}
		formatOutcomes(os.Stdout, outs)
		return nil
	},
}

func init() {
	runsCmd.Flags().Int("limit", 20, "max number of runs to display")
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(outcomesCmd)
}

func formatRuns(out io.Writer, runs []ledger.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tINPUT\tITEMS\tSUCCESS\tSTARTED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t-----\t-----\t-------\t-------\t--------")
	for _, r := range runs {
		dur := "running"
		if r.FinishedAt != nil {
			dur = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n",
			truncateID(r.ID), r.Input, r.Total, r.Counts[types.StatusSuccess],
			r.StartedAt.Local().Format("2006-01-02 15:04"), dur)
	}
	_ = w.Flush()
}

func formatOutcomes(out io.Writer, outs []types.ProcessingOutcome) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "#\tSTATUS\tSTAGE\tBILLABLE\tAPPLICATION\tLOCATOR\tDETAIL")
	for _, o := range outs {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			o.Item.Index+1, o.Status, o.Stage, yesNo(o.Billable), yesNo(o.SaleOrApplication),
			shorten(o.Item.Locator, 60), shorten(o.Detail, 60))
	}
	_ = w.Flush()
}

// formatTally prints the end-of-run counts, every status included.
func formatTally(out io.Writer, t aggregator.Tally) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Processed\t%d\n", t.Total)
	for _, s := range types.Statuses() {
		_, _ = fmt.Fprintf(w, "%s\t%d\n", s, t.ByStatus[s])
	}
	_, _ = fmt.Fprintf(w, "Billable\t%d\n", t.Billable)
	_, _ = fmt.Fprintf(w, "Applications submitted\t%d\n", t.SaleOrApplication)
	_ = w.Flush()
}

func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func yesNo(b bool) string {
	if b {
		return "YES"
	}
	return "NO"
}
