package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/nullfix/internal/artifact"
	"github.com/papapumpkin/nullfix/internal/finding"
	"github.com/papapumpkin/nullfix/internal/logging"
	"github.com/papapumpkin/nullfix/internal/round"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of the latest run",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dir := artifact.Dir(cfg.OutDir)

	st, err := round.LoadState(dir)
	if err != nil {
		return err
	}
	store, err := finding.Open(dir, logging.New("store"))
	if err != nil {
		return err
	}
	printStatus(cmd, dir, st, store.Len())
	return nil
}

func printStatus(cmd *cobra.Command, dir artifact.Dir, st *round.State, accumulated int) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "output dir:   %s\n", dir)
	fmt.Fprintf(w, "accumulated:  %d finding(s)\n", accumulated)
	if st.RunID == "" {
		fmt.Fprintln(w, "last run:     none")
		return
	}
	fmt.Fprintf(w, "last run:     %s (%s)\n", st.RunID, st.Command)
	fmt.Fprintf(w, "outcome:      %s\n", st.Outcome)
	fmt.Fprintf(w, "phase:        %s, round %d\n", st.Phase, st.Round)
	fmt.Fprintf(w, "started:      %s\n", st.StartedAt.Local().Format(time.DateTime))
	fmt.Fprintf(w, "updated:      %s\n", st.UpdatedAt.Local().Format(time.DateTime))
	if st.Error != "" {
		fmt.Fprintf(w, "error:        %s\n", st.Error)
	}
}
