package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/nullfix/internal/round"
	"github.com/papapumpkin/nullfix/internal/selector"
	"github.com/papapumpkin/nullfix/internal/ui"
)

var exploreCmd = &cobra.Command{
	Use:   "explore",
	Short: "Run one diagnostic pass and summarize the report",
	Args:  cobra.NoArgs,
	RunE:  runExplore,
}

func init() {
	rootCmd.AddCommand(exploreCmd)
}

func runExplore(cmd *cobra.Command, _ []string) error {
	printer := ui.New()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := setupSignalContext(cmd.Context(), printer)
	defer cancel()

	s, err := openSession(ctx, cfg, printer)
	if err != nil {
		return err
	}
	defer s.Close()

	s.ctrl.Begin(ctx, "explore")
	report, err := s.ctrl.Explore(ctx)
	s.ctrl.End(ctx, round.OutcomeExplored, err)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d finding(s), %d effective\n", len(report), len(selector.Select(report)))
	return nil
}
