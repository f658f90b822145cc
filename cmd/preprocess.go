package cmd

import (
	"github.com/spf13/cobra"

	"github.com/papapumpkin/nullfix/internal/round"
	"github.com/papapumpkin/nullfix/internal/ui"
)

var preprocessCmd = &cobra.Command{
	Use:   "preprocess",
	Short: "Trace field writes and inject initializer annotations",
	Args:  cobra.NoArgs,
	RunE:  runPreprocess,
}

func init() {
	rootCmd.AddCommand(preprocessCmd)
}

func runPreprocess(cmd *cobra.Command, _ []string) error {
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

	s.ctrl.Begin(ctx, "preprocess")
	_, err = s.ctrl.Preprocess(ctx)
	s.ctrl.End(ctx, round.OutcomePreprocessed, err)
	return err
}
