package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/papapumpkin/nullfix/internal/artifact"
	"github.com/papapumpkin/nullfix/internal/ui"
)

var errNotConfirmed = errors.New("refusing to remove the output directory without confirmation (use --yes)")

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove intermediate artifacts from the output directory",
	Long: `Removes the files exchanged with the analyzer during a round. The
accumulated findings and the analyzer log are kept.

With --all, the whole output directory is removed, including accumulated
findings and run history.`,
	Args: cobra.NoArgs,
	RunE: runClean,
}

func init() {
	cleanCmd.Flags().Bool("all", false, "remove the whole output directory")
	cleanCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
	rootCmd.AddCommand(cleanCmd)
}

func runClean(cmd *cobra.Command, _ []string) error {
	printer := ui.New()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dir := artifact.Dir(cfg.OutDir)

	all, _ := cmd.Flags().GetBool("all")
	if !all {
		removed := dir.Clean(false)
		printer.Success(fmt.Sprintf("removed %d intermediate file(s) from %s", len(removed), dir))
		return nil
	}

	yes, _ := cmd.Flags().GetBool("yes")
	if !yes {
		ok, err := confirm(fmt.Sprintf("Remove %s and everything in it?", dir))
		if err != nil {
			return err
		}
		if !ok {
			printer.Info("aborted")
			return nil
		}
	}
	if err := dir.RemoveAll(); err != nil {
		return err
	}
	printer.Success(fmt.Sprintf("removed %s", dir))
	return nil
}

// confirm asks a yes/no question on the terminal. Without a terminal it
// refuses rather than guessing.
func confirm(title string) (bool, error) {
	fd := os.Stdin.Fd()
	if !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
		return false, errNotConfirmed
	}
	var ok bool
	err := huh.NewConfirm().
		Title(title).
		Affirmative("Remove").
		Negative("Cancel").
		Value(&ok).
		Run()
	if err != nil {
		return false, fmt.Errorf("confirmation prompt: %w", err)
	}
	return ok, nil
}
