package artifact

import (
	"os"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func touch(t *testing.T, d Dir, names ...string) {
	t.Helper()
	for _, n := range names {
		if err := os.WriteFile(d.Path(n), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestPrepare_SeedsFailedFixes(t *testing.T) {
	d := Dir(t.TempDir() + "/out")
	if err := d.Prepare(); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	data, err := os.ReadFile(d.Path(FailedFixes))
	if err != nil {
		t.Fatalf("reading failed fixes: %v", err)
	}
	if string(data) != `{"fixes":[]}` {
		t.Errorf("failed.json = %s", data)
	}
}

func TestClean_KeepsPersistentState(t *testing.T) {
	d := Dir(t.TempDir())
	touch(t, d, RoundReport, SelectedFixes, AccumulatedReports, ToolLog)

	removed := d.Clean(false)
	sort.Strings(removed)
	if diff := cmp.Diff([]string{SelectedFixes, RoundReport}, removed); diff != "" {
		t.Errorf("removed mismatch (-want +got):\n%s", diff)
	}
	for _, n := range []string{AccumulatedReports, ToolLog} {
		if _, err := os.Stat(d.Path(n)); err != nil {
			t.Errorf("%s should survive a partial clean: %v", n, err)
		}
	}
}

func TestClean_Full(t *testing.T) {
	d := Dir(t.TempDir())
	touch(t, d, RoundReport, AccumulatedReports, ToolLog, RunState)

	d.Clean(true)
	for _, n := range []string{RoundReport, AccumulatedReports, ToolLog, RunState} {
		if _, err := os.Stat(d.Path(n)); !os.IsNotExist(err) {
			t.Errorf("%s should be removed, stat err = %v", n, err)
		}
	}
}

func TestRemove_MissingIsNotAnError(t *testing.T) {
	d := Dir(t.TempDir())
	if err := d.Remove("nope.json"); err != nil {
		t.Errorf("Remove missing file: %v", err)
	}
}
