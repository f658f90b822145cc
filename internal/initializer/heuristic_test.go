package initializer

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/papapumpkin/nullfix/internal/finding"
)

const initAnnot = "com.uber.nullaway.annotations.Initializer"

func noInit(class, field string) finding.Finding {
	return finding.Finding{Fix: finding.Fix{
		Location:   finding.Location{Kind: finding.KindField, Class: class, Variable: field},
		Annotation: "javax.annotation.Nullable",
		Inject:     true,
		Reason:     finding.ReasonFieldNoInit,
	}}
}

func write(class, method, field string) FieldWrite {
	return FieldWrite{Class: class, Method: method, Field: field, URI: "file:/" + class + ".java"}
}

func methods(cands []Candidate) []string {
	var out []string
	for _, c := range cands {
		out = append(out, c.Class+"#"+c.Method)
	}
	return out
}

func TestFind_SingleFieldWriterIsRejected(t *testing.T) {
	writes := []FieldWrite{
		write("C", "m1()", "f"),
		write("C", "m1()", "g"),
		write("C", "m2()", "f"),
	}
	got := Find([]finding.Finding{noInit("C", "f")}, writes, initAnnot)
	if len(got) != 0 {
		t.Errorf("expected no candidates, got %v", methods(got))
	}
}

func TestFind_SharedInitializerIsAccepted(t *testing.T) {
	writes := []FieldWrite{
		write("C", "m1()", "f"),
		write("C", "m1()", "g"),
		write("C", "m2()", "f"),
	}
	got := Find([]finding.Finding{noInit("C", "f"), noInit("C", "g")}, writes, initAnnot)

	want := []Candidate{{
		Fix: finding.Fix{
			Location: finding.Location{
				Kind:   finding.KindMethod,
				Class:  "C",
				Method: "m1()",
				URI:    "file:/C.java",
			},
			Annotation: initAnnot,
			Inject:     true,
			Reason:     finding.ReasonInitializer,
		},
		Score: 2,
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("candidates mismatch (-want +got):\n%s", diff)
	}
}

func TestFind_DuplicateTracesCountOnce(t *testing.T) {
	writes := []FieldWrite{
		write("C", "init()", "f"),
		write("C", "init()", "f"),
		write("C", "init()", "f"),
	}
	got := Find([]finding.Finding{noInit("C", "f")}, writes, initAnnot)
	if len(got) != 0 {
		t.Errorf("repeated writes of one field must not qualify, got %v", methods(got))
	}
}

func TestFind_DuplicateFindingsCountOnce(t *testing.T) {
	writes := []FieldWrite{write("C", "init()", "f"), write("C", "init()", "g")}
	got := Find([]finding.Finding{noInit("C", "f"), noInit("C", "f")}, writes, initAnnot)
	if len(got) != 0 {
		t.Errorf("one finding reported twice must not qualify, got %v", methods(got))
	}
}

func TestFind_DistinctFindingsOnOneFieldEachCount(t *testing.T) {
	writes := []FieldWrite{write("C", "init()", "f"), write("C", "init()", "g")}
	other := noInit("C", "f")
	other.Effect = 3
	got := Find([]finding.Finding{noInit("C", "f"), other}, writes, initAnnot)
	if len(got) != 1 || got[0].Score != 2 {
		t.Errorf("two distinct findings should score init() 2, got %+v", got)
	}
}

func TestFind_ClassesDoNotMix(t *testing.T) {
	writes := []FieldWrite{
		write("A", "init()", "f"),
		write("B", "init()", "g"),
	}
	got := Find([]finding.Finding{noInit("A", "f"), noInit("A", "g"), noInit("B", "f"), noInit("B", "g")}, writes, initAnnot)
	if len(got) != 0 {
		t.Errorf("writes of another class must not count, got %v", methods(got))
	}
}

func TestFind_OnePerClassHighestWins(t *testing.T) {
	writes := []FieldWrite{
		write("C", "small()", "a"),
		write("C", "small()", "b"),
		write("C", "big()", "c"),
		write("C", "big()", "d"),
		write("C", "big()", "e"),
		write("D", "setUp()", "x"),
		write("D", "setUp()", "y"),
	}
	unresolved := []finding.Finding{
		noInit("C", "a"), noInit("C", "b"), noInit("C", "c"), noInit("C", "d"), noInit("C", "e"),
		noInit("D", "x"), noInit("D", "y"),
	}
	got := Find(unresolved, writes, initAnnot)
	if diff := cmp.Diff([]string{"C#big()", "D#setUp()"}, methods(got)); diff != "" {
		t.Errorf("candidates mismatch (-want +got):\n%s", diff)
	}
	if got[0].Score != 3 {
		t.Errorf("C score = %d, want 3", got[0].Score)
	}
}

func TestFind_TieBreaksOnMethodName(t *testing.T) {
	writes := []FieldWrite{
		write("C", "zeta()", "f"),
		write("C", "zeta()", "g"),
		write("C", "alpha()", "f"),
		write("C", "alpha()", "g"),
	}
	got := Find([]finding.Finding{noInit("C", "f"), noInit("C", "g")}, writes, initAnnot)
	if diff := cmp.Diff([]string{"C#alpha()"}, methods(got)); diff != "" {
		t.Errorf("tie-break mismatch (-want +got):\n%s", diff)
	}
}

func TestFind_IgnoresOtherFindings(t *testing.T) {
	other := noInit("C", "g")
	other.Reason = "DEREFERENCE"
	param := noInit("C", "f")
	param.Kind = finding.KindParameter

	writes := []FieldWrite{write("C", "m()", "f"), write("C", "m()", "g")}
	got := Find([]finding.Finding{noInit("C", "f"), other, param}, writes, initAnnot)
	if len(got) != 0 {
		t.Errorf("only FIELD/FIELD_NO_INIT findings should count, got %v", methods(got))
	}
}

func TestFind_Idempotent(t *testing.T) {
	writes := []FieldWrite{
		write("C", "b()", "f"), write("C", "b()", "g"),
		write("C", "a()", "f"), write("C", "a()", "g"),
		write("E", "init()", "p"), write("E", "init()", "q"), write("E", "other()", "p"),
	}
	unresolved := []finding.Finding{noInit("E", "q"), noInit("C", "g"), noInit("E", "p"), noInit("C", "f")}

	first := Find(unresolved, writes, initAnnot)
	second := Find(unresolved, writes, initAnnot)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("second run differs (-first +second):\n%s", diff)
	}
}

func TestDedup_KeepsMaxScorePerClass(t *testing.T) {
	in := []Candidate{
		{Fix: finding.Fix{Location: finding.Location{Kind: finding.KindMethod, Class: "C", Method: "two()"}}, Score: 2},
		{Fix: finding.Fix{Location: finding.Location{Kind: finding.KindMethod, Class: "C", Method: "three()"}}, Score: 3},
		{Fix: finding.Fix{Location: finding.Location{Kind: finding.KindMethod, Class: "B", Method: "x()"}}, Score: 2},
	}
	got := Dedup(in)
	if diff := cmp.Diff([]string{"B#x()", "C#three()"}, methods(got)); diff != "" {
		t.Errorf("Dedup mismatch (-want +got):\n%s", diff)
	}
}

func TestRecords_AffinityStartsAtZero(t *testing.T) {
	recs := Records([]FieldWrite{write("C", "m()", "f"), write("C", "m()", "f"), write("C", "n()", "g")})
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	for _, r := range recs {
		if r.Affinity != 0 {
			t.Errorf("%s affinity = %d, want 0", r.Method, r.Affinity)
		}
		if len(r.Fields) != 1 {
			t.Errorf("%s fields = %d, want 1", r.Method, len(r.Fields))
		}
	}
}

func TestParseTraces(t *testing.T) {
	in := "method\tclass\tfield\turi\n" +
		"init()\tcom.a.C\tf\tfile:/C.java\n" +
		"init()\tcom.a.C\tg\tfile:/C.java\n"
	got, err := ParseTraces(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ParseTraces: %v", err)
	}
	want := []FieldWrite{
		{Class: "com.a.C", Method: "init()", Field: "f", URI: "file:/C.java"},
		{Class: "com.a.C", Method: "init()", Field: "g", URI: "file:/C.java"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("traces mismatch (-want +got):\n%s", diff)
	}
}

func TestParseTraces_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"missing column", "method\tclass\n"},
		{"empty field", "method\tclass\tfield\ninit()\tC\t\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseTraces(strings.NewReader(tt.in)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}
