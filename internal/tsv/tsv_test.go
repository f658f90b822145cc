package tsv

import (
	"errors"
	"strings"
	"testing"
)

func TestRead_ByColumnName(t *testing.T) {
	in := "method\tclass\tfield\n" +
		"init()\tcom.a.C\tf\n" +
		"\n" +
		"setUp()\tcom.a.C\tg\n"
	tbl, err := Read(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(tbl.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(tbl.Rows))
	}
	if got := tbl.Rows[1].Get("method"); got != "setUp()" {
		t.Errorf("method = %q, want setUp()", got)
	}
	if got := tbl.Rows[0].Get("uri"); got != "" {
		t.Errorf("absent column should read empty, got %q", got)
	}
}

func TestRead_QuotesAreLiteral(t *testing.T) {
	in := "class\tmethod\n" + `com.a.C` + "\t" + `m("x)` + "\n"
	tbl, err := Read(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got := tbl.Rows[0].Get("method"); got != `m("x)` {
		t.Errorf("method = %q", got)
	}
}

func TestRead_ShortRow(t *testing.T) {
	tbl, err := Read(strings.NewReader("a\tb\tc\n1\t2\n"))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got := tbl.Rows[0].Get("c"); got != "" {
		t.Errorf("c = %q, want empty", got)
	}
}

func TestRead_Empty(t *testing.T) {
	tbl, err := Read(strings.NewReader(""))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(tbl.Rows) != 0 {
		t.Errorf("expected no rows, got %d", len(tbl.Rows))
	}
}

func TestRequire(t *testing.T) {
	tbl, err := Read(strings.NewReader("class\tfield\n"))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	err = tbl.Require("class", "method", "field")
	if !errors.Is(err, ErrMissingColumn) {
		t.Fatalf("expected ErrMissingColumn, got %v", err)
	}
	if !strings.Contains(err.Error(), "method") {
		t.Errorf("error should name the missing column: %v", err)
	}
	if err := tbl.Require("class"); err != nil {
		t.Errorf("Require(class): %v", err)
	}
}
