package round

import (
	"errors"
	"fmt"
	"os"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/papapumpkin/nullfix/internal/artifact"
)

// Phase is the stage a run is in.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhasePreprocess Phase = "preprocess"
	PhaseExplore    Phase = "explore"
	PhaseApply      Phase = "apply"
	PhaseMerge      Phase = "merge"
	PhaseDone       Phase = "done"
)

// Outcome is how a run ended.
type Outcome string

const (
	OutcomeRunning      Outcome = "running"
	OutcomeNoIssues     Outcome = "no_issues"
	OutcomeConverged    Outcome = "converged"
	OutcomePreprocessed Outcome = "preprocessed"
	OutcomeExplored     Outcome = "explored"
	OutcomeApplied      Outcome = "applied"
	OutcomeMaxRounds    Outcome = "max_rounds"
	OutcomeInterrupted  Outcome = "interrupted"
	OutcomeFailed       Outcome = "failed"
)

// State is the persisted progress of the latest run, shown by `nullfix status`.
type State struct {
	Version     int       `toml:"version"`
	RunID       string    `toml:"run_id"`
	Command     string    `toml:"command"`
	Round       int       `toml:"round"`
	Phase       Phase     `toml:"phase"`
	Outcome     Outcome   `toml:"outcome"`
	Accumulated int       `toml:"accumulated"`
	Error       string    `toml:"error,omitempty"`
	StartedAt   time.Time `toml:"started_at"`
	UpdatedAt   time.Time `toml:"updated_at"`
}

// LoadState reads the run state from dir. It returns an idle state if the
// file does not exist.
func LoadState(dir artifact.Dir) (*State, error) {
	data, err := os.ReadFile(dir.Path(artifact.RunState))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &State{Version: 1, Phase: PhaseIdle}, nil
		}
		return nil, fmt.Errorf("reading state file: %w", err)
	}
	var st State
	if err := toml.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parsing state file: %w", err)
	}
	return &st, nil
}

// SaveState writes the run state atomically (write temp + rename).
func SaveState(dir artifact.Dir, st *State) error {
	data, err := toml.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshaling state: %w", err)
	}
	path := dir.Path(artifact.RunState)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing temp state file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming state file: %w", err)
	}
	return nil
}
