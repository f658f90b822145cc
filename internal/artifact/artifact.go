// Package artifact names the files exchanged with the analyzer inside the
// output directory and knows which of them are intermediate.
package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// File names inside the output directory.
const (
	SerializationConfig = "config.xml"
	RoundReport         = "diagnose_report.json"
	SelectedFixes       = "cleaned.json"
	SuggestedFixes      = "fixes.tsv"
	FieldWrites         = "field_init.tsv"
	InitializerFixes    = "init_methods.json"
	FailedFixes         = "failed.json"
	AccumulatedReports  = "reports.json"
	RunState            = "state.toml"
	Events              = "events.jsonl"
	History             = "history.db"
	Metrics             = "metrics.prom"
	ToolLog             = "log.txt"
)

// intermediate is removed by every clean; persistent only by a full clean.
var (
	intermediate = []string{
		RoundReport,
		SuggestedFixes,
		SelectedFixes,
		InitializerFixes,
		FieldWrites,
		SerializationConfig,
		"diagnose.json",
		"method_info.csv",
		"errors.csv",
	}
	persistent = []string{
		AccumulatedReports,
		ToolLog,
		RunState,
	}
)

// Dir is an output directory shared with the analyzer.
type Dir string

// Path joins name onto the directory.
func (d Dir) Path(name string) string {
	return filepath.Join(string(d), name)
}

// Prepare creates the directory and seeds the empty failed-fixes record the
// analyzer expects to find.
func (d Dir) Prepare() error {
	if err := os.MkdirAll(string(d), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	data, err := json.Marshal(map[string][]any{"fixes": {}})
	if err != nil {
		return err
	}
	if err := os.WriteFile(d.Path(FailedFixes), data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", FailedFixes, err)
	}
	return nil
}

// Remove deletes the named artifact. A missing file is not an error.
func (d Dir) Remove(name string) error {
	err := os.Remove(d.Path(name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Clean removes intermediate artifacts and, when full is set, the
// accumulated state as well. It returns the names actually removed.
// Failures are ignored: a file that cannot be removed is stale at worst.
func (d Dir) Clean(full bool) []string {
	names := intermediate
	if full {
		names = append(append([]string{}, intermediate...), persistent...)
	}
	var removed []string
	for _, name := range names {
		if _, err := os.Stat(d.Path(name)); err != nil {
			continue
		}
		if d.Remove(name) == nil {
			removed = append(removed, name)
		}
	}
	return removed
}

// RemoveAll deletes the whole directory.
func (d Dir) RemoveAll() error {
	if err := os.RemoveAll(string(d)); err != nil {
		return fmt.Errorf("removing %s: %w", d, err)
	}
	return nil
}

// WriteJSON atomically writes v as JSON to the named artifact (write temp
// + rename).
func (d Dir) WriteJSON(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", name, err)
	}
	path := d.Path(name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing temp %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming %s: %w", name, err)
	}
	return nil
}
