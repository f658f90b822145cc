package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/nullfix/internal/round"
	"github.com/papapumpkin/nullfix/internal/ui"
)

var applyCmd = &cobra.Command{
	Use:   "apply [batch]",
	Short: "Inject a fix batch",
	Long: `With a path, injects that batch file. Without one, selects the effective
fixes of the latest diagnostic report into cleaned.json and injects them.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runApply,
}

func init() {
	rootCmd.AddCommand(applyCmd)
}

func runApply(cmd *cobra.Command, args []string) error {
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

	s.ctrl.Begin(ctx, "apply")
	if len(args) == 1 {
		path, err := filepath.Abs(args[0])
		if err == nil {
			err = s.ctrl.Apply(ctx, path)
		}
		s.ctrl.End(ctx, round.OutcomeApplied, err)
		return err
	}

	report, err := s.store.LoadRoundReport()
	if err != nil {
		s.ctrl.End(ctx, round.OutcomeApplied, err)
		return fmt.Errorf("%w (run `nullfix explore` first)", err)
	}
	selected, err := s.ctrl.ApplySelected(ctx, report)
	s.ctrl.End(ctx, round.OutcomeApplied, err)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "applied %d of %d finding(s)\n", len(selected), len(report))
	return nil
}
