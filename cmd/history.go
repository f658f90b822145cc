package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/nullfix/internal/artifact"
	"github.com/papapumpkin/nullfix/internal/ledger"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past runs",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "number of runs to show (0 = all)")
	historyCmd.Flags().String("run", "", "show the rounds of one run")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	path := artifact.Dir(cfg.OutDir).Path(artifact.History)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(cmd.OutOrStdout(), "no runs recorded")
		return nil
	}

	ctx := context.Background()
	l, err := ledger.Open(ctx, path)
	if err != nil {
		return err
	}
	defer l.Close()

	if id, _ := cmd.Flags().GetString("run"); id != "" {
		rounds, err := l.Rounds(ctx, id)
		if err != nil {
			return err
		}
		return printRounds(cmd.OutOrStdout(), rounds)
	}

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := l.Runs(ctx, limit)
	if err != nil {
		return err
	}
	return printRuns(cmd.OutOrStdout(), runs)
}

func printRuns(out io.Writer, runs []ledger.Run) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tCOMMAND\tSTARTED\tDURATION\tROUNDS\tFINDINGS\tOUTCOME")
	for _, r := range runs {
		dur := "-"
		if !r.FinishedAt.IsZero() {
			dur = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			shortID(r.ID), r.Command, r.StartedAt.Local().Format(time.DateTime), dur,
			r.Rounds, r.Accumulated, r.Outcome)
	}
	return w.Flush()
}

func printRounds(out io.Writer, rounds []ledger.Round) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ROUND\tREPORTED\tSELECTED\tNEW\tACCUMULATED\tDURATION")
	for _, r := range rounds {
		fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%d\t%s\n",
			r.Round, r.Reported, r.Selected, r.New, r.Accumulated,
			r.FinishedAt.Sub(r.StartedAt).Round(time.Second))
	}
	return w.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
