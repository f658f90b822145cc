package round

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"

	"github.com/papapumpkin/nullfix/internal/artifact"
	"github.com/papapumpkin/nullfix/internal/finding"
	"github.com/papapumpkin/nullfix/internal/initializer"
)

const suggestedHeader = "location\tclass\tmethod\tparam\tindex\turi\treason\tannotation\n"

func TestPreprocess_AppliesInitializers(t *testing.T) {
	a := &fakeAnalyzer{
		suggested: suggestedHeader +
			"FIELD\tcom.a.C\t\tf\t\tfile:/C.java\tFIELD_NO_INIT\tjavax.annotation.Nullable\n" +
			"FIELD\tcom.a.C\t\tg\t\tfile:/C.java\tFIELD_NO_INIT\tjavax.annotation.Nullable\n" +
			"METHOD\tcom.a.C\tget()\t\t\tfile:/C.java\tRETURN_NULLABLE\tjavax.annotation.Nullable\n",
		traces: "class\tmethod\tfield\turi\n" +
			"com.a.C\tm1()\tf\tfile:/C.java\n" +
			"com.a.C\tm1()\tg\tfile:/C.java\n" +
			"com.a.C\tm2()\tf\tfile:/C.java\n",
	}
	c := newController(t, a)

	got, err := c.Preprocess(context.Background())
	if err != nil {
		t.Fatalf("Preprocess: %v", err)
	}
	if len(got) != 1 || got[0].Method != "m1()" || got[0].Score != 2 {
		t.Fatalf("unexpected candidates: %+v", got)
	}
	if len(a.applied) != 1 || a.applied[0] != c.Dir.Path(artifact.InitializerFixes) {
		t.Fatalf("applied = %v", a.applied)
	}

	data, err := os.ReadFile(a.applied[0])
	if err != nil {
		t.Fatal(err)
	}
	var batch finding.Batch[initializer.Candidate]
	if err := json.Unmarshal(data, &batch); err != nil {
		t.Fatal(err)
	}
	if len(batch.Fixes) != 1 || batch.Fixes[0].Annotation != c.InitializerAnnotation || batch.Fixes[0].Score != 2 {
		t.Errorf("unexpected batch: %+v", batch)
	}
}

func TestPreprocess_NoCandidatesSkipsApply(t *testing.T) {
	a := &fakeAnalyzer{
		suggested: suggestedHeader,
		traces:    "class\tmethod\tfield\n",
	}
	c := newController(t, a)

	got, err := c.Preprocess(context.Background())
	if err != nil {
		t.Fatalf("Preprocess: %v", err)
	}
	if len(got) != 0 || len(a.applied) != 0 {
		t.Errorf("candidates = %d, applied = %d", len(got), len(a.applied))
	}
	if _, err := os.Stat(c.Dir.Path(artifact.InitializerFixes)); err != nil {
		t.Errorf("initializer batch should still be written: %v", err)
	}
}

type failingTrace struct{ fakeAnalyzer }

func (failingTrace) Trace(context.Context) error { return nil }

func TestPreprocess_MissingTraceOutput(t *testing.T) {
	f := &failingTrace{}
	c := newController(t, &f.fakeAnalyzer)
	c.Analyzer = f
	// Leftovers from a previous pass are removed before tracing.
	if err := os.WriteFile(c.Dir.Path(artifact.SuggestedFixes), []byte(suggestedHeader), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := c.Preprocess(context.Background())
	if !errors.Is(err, finding.ErrMissingArtifact) {
		t.Fatalf("expected ErrMissingArtifact, got %v", err)
	}
}
