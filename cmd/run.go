package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papapumpkin/nullfix/internal/round"
	"github.com/papapumpkin/nullfix/internal/ui"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Preprocess, then run rounds until no new findings appear",
	Long: `Runs the initializer preprocessing pass once, then explores, applies
effective fixes and merges the report until the analyzer reports nothing or
a round adds nothing to the accumulated findings.

The accumulated findings of an earlier run are reused unless --fresh is set.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	runCmd.Flags().Bool("fresh", false, "discard accumulated findings from earlier runs")
	runCmd.Flags().Bool("skip-preprocess", false, "skip the initializer preprocessing pass")
	runCmd.Flags().Int("max-rounds", 0, "stop after this many rounds (0 = unbounded)")
	_ = viper.BindPFlag("max_rounds", runCmd.Flags().Lookup("max-rounds"))

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, _ []string) error {
	start := time.Now()
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

	if fresh, _ := cmd.Flags().GetBool("fresh"); fresh {
		if err := s.store.Reset(); err != nil {
			return err
		}
	} else if n := s.store.Len(); n > 0 {
		printer.Info(fmt.Sprintf("resuming with %d accumulated finding(s)", n))
	}
	skip, _ := cmd.Flags().GetBool("skip-preprocess")

	s.ctrl.Begin(ctx, "run")
	res, err := runRounds(ctx, s.ctrl, skip)
	outcome := round.OutcomeFailed
	if res != nil {
		outcome = res.Outcome
	}
	s.ctrl.End(ctx, outcome, err)

	if err == nil {
		s.dir.Clean(false)
	}
	printer.Elapsed(time.Since(start))
	return err
}

func runRounds(ctx context.Context, ctrl *round.Controller, skipPreprocess bool) (*round.Result, error) {
	if !skipPreprocess {
		if _, err := ctrl.Preprocess(ctx); err != nil {
			return nil, fmt.Errorf("preprocess: %w", err)
		}
	}
	return ctrl.Run(ctx)
}
