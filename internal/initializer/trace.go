package initializer

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/papapumpkin/nullfix/internal/finding"
	"github.com/papapumpkin/nullfix/internal/tsv"
)

// FieldWrite is one observed write of a field by a method, recorded by the
// analyzer during a traced build.
type FieldWrite struct {
	Class  string
	Method string
	Field  string
	URI    string
}

// ParseTraces reads field writes from a TSV stream with at least the
// columns class, method and field.
func ParseTraces(r io.Reader) ([]FieldWrite, error) {
	tbl, err := tsv.Read(r)
	if err != nil {
		return nil, err
	}
	if len(tbl.Header) == 0 {
		return nil, nil
	}
	if err := tbl.Require("class", "method", "field"); err != nil {
		return nil, err
	}
	writes := make([]FieldWrite, 0, len(tbl.Rows))
	for _, row := range tbl.Rows {
		w := FieldWrite{
			Class:  row.Get("class"),
			Method: row.Get("method"),
			Field:  row.Get("field"),
			URI:    row.Get("uri"),
		}
		if w.Class == "" || w.Method == "" || w.Field == "" {
			return nil, fmt.Errorf("line %d: incomplete field write", row.Line)
		}
		writes = append(writes, w)
	}
	return writes, nil
}

// ReadTraces loads the trace file at path. A missing file means the traced
// build did not run and is reported as finding.ErrMissingArtifact.
func ReadTraces(path string) ([]FieldWrite, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", finding.ErrMissingArtifact, path)
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	writes, err := ParseTraces(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", finding.ErrCorruptState, path, err)
	}
	return writes, nil
}
