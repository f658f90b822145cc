package finding

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/papapumpkin/nullfix/internal/artifact"
	"github.com/papapumpkin/nullfix/internal/tsv"
)

// Store holds the accumulated finding set of a run and reads the round
// reports the analyzer writes. It has a single writer and is not safe for
// concurrent use.
type Store struct {
	dir         artifact.Dir
	log         *slog.Logger
	accumulated []Finding
	seen        map[string]struct{}
}

// Open loads the persisted accumulated set from dir. A missing file yields
// an empty set.
func Open(dir artifact.Dir, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	s := &Store{dir: dir, log: log, seen: make(map[string]struct{})}
	rep, err := readReport(dir.Path(artifact.AccumulatedReports))
	switch {
	case errors.Is(err, ErrMissingArtifact):
		return s, nil
	case err != nil:
		return nil, err
	}
	for _, f := range rep.Reports {
		s.add(f)
	}
	log.Debug("accumulated set loaded", "findings", len(s.accumulated))
	return s, nil
}

// Accumulated returns a copy of every distinct finding seen so far, in the
// order first observed.
func (s *Store) Accumulated() []Finding {
	out := make([]Finding, len(s.accumulated))
	copy(out, s.accumulated)
	return out
}

// Len is the size of the accumulated set.
func (s *Store) Len() int { return len(s.accumulated) }

// Contains reports whether f has been accumulated.
func (s *Store) Contains(f Finding) bool {
	_, ok := s.seen[f.Key()]
	return ok
}

func (s *Store) add(f Finding) bool {
	k := f.Key()
	if _, ok := s.seen[k]; ok {
		return false
	}
	s.seen[k] = struct{}{}
	s.accumulated = append(s.accumulated, f)
	return true
}

// Merge adds every finding of a round report that is not yet accumulated,
// persists the set, and returns how many were new. The in-memory set is
// updated even if persisting fails.
func (s *Store) Merge(report []Finding) (int, error) {
	added := 0
	for _, f := range report {
		if s.add(f) {
			added++
		}
	}
	if err := s.Save(); err != nil {
		return added, err
	}
	s.log.Debug("round merged", "new", added, "accumulated", len(s.accumulated))
	return added, nil
}

// Save persists the accumulated set.
func (s *Store) Save() error {
	rep := Report{Reports: s.accumulated}
	if rep.Reports == nil {
		rep.Reports = []Finding{}
	}
	if err := s.dir.WriteJSON(artifact.AccumulatedReports, rep); err != nil {
		return fmt.Errorf("persisting accumulated findings: %w", err)
	}
	return nil
}

// Reset empties the accumulated set and persists the empty record.
func (s *Store) Reset() error {
	s.accumulated = nil
	s.seen = make(map[string]struct{})
	return s.Save()
}

// DiscardRoundReport removes the previous round's report so a missing
// report after explore is detectable.
func (s *Store) DiscardRoundReport() error {
	return s.dir.Remove(artifact.RoundReport)
}

// LoadRoundReport reads the report of the latest exploration pass.
func (s *Store) LoadRoundReport() ([]Finding, error) {
	rep, err := readReport(s.dir.Path(artifact.RoundReport))
	if err != nil {
		return nil, err
	}
	return rep.Reports, nil
}

// LoadSuggestedFixes reads the analyzer's tabular fix suggestions written
// by a traced build.
func (s *Store) LoadSuggestedFixes() ([]Finding, error) {
	path := s.dir.Path(artifact.SuggestedFixes)
	tbl, err := tsv.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrMissingArtifact, path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	if err := tbl.Require("location", "class", "param", "reason"); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptState, path, err)
	}
	out := make([]Finding, 0, len(tbl.Rows))
	for _, r := range tbl.Rows {
		out = append(out, Finding{Fix: Fix{
			Location: Location{
				Kind:     Kind(r.Get("location")),
				Class:    r.Get("class"),
				Method:   r.Get("method"),
				Variable: r.Get("param"),
				Index:    r.Get("index"),
				URI:      r.Get("uri"),
				Pkg:      PackageOf(r.Get("class")),
			},
			Annotation: r.Get("annotation"),
			Inject:     true,
			Reason:     r.Get("reason"),
		}})
	}
	return out, nil
}

// WriteBatch writes fixes as a {"fixes": [...]} artifact and returns its path.
func WriteBatch[T any](dir artifact.Dir, name string, fixes []T) (string, error) {
	if fixes == nil {
		fixes = []T{}
	}
	if err := dir.WriteJSON(name, Batch[T]{Fixes: fixes}); err != nil {
		return "", err
	}
	return dir.Path(name), nil
}

func readReport(path string) (Report, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Report{}, fmt.Errorf("%w: %s", ErrMissingArtifact, path)
	}
	if err != nil {
		return Report{}, fmt.Errorf("reading %s: %w", path, err)
	}
	var rep Report
	if err := json.Unmarshal(data, &rep); err != nil {
		return Report{}, fmt.Errorf("%w: %s: %v", ErrCorruptState, path, err)
	}
	return rep, nil
}
