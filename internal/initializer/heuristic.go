// Package initializer chooses, per class, the method to mark as the
// initializer of fields the analyzer reports as never initialized.
//
// A method qualifies when it writes more than one of the class's
// uninitialized fields. Among qualifying methods the one writing the most
// wins, so a helper that happens to set a single field is never chosen.
package initializer

import (
	"encoding/json"
	"maps"
	"sort"

	"github.com/papapumpkin/nullfix/internal/finding"
)

// Candidate is an initializer annotation ready to be applied.
type Candidate struct {
	finding.Fix
	Score int `json:"score"`
}

// MarshalJSON writes the fix with its score alongside.
func (c Candidate) MarshalJSON() ([]byte, error) {
	score, err := json.Marshal(c.Score)
	if err != nil {
		return nil, err
	}
	fix := c.Fix
	fix.Extra = maps.Clone(fix.Extra)
	if fix.Extra == nil {
		fix.Extra = make(map[string]json.RawMessage, 1)
	}
	fix.Extra["score"] = score
	return json.Marshal(fix)
}

// UnmarshalJSON reads a candidate written by MarshalJSON.
func (c *Candidate) UnmarshalJSON(data []byte) error {
	var fix finding.Fix
	if err := json.Unmarshal(data, &fix); err != nil {
		return err
	}
	var scored struct {
		Score int `json:"score"`
	}
	if err := json.Unmarshal(data, &scored); err != nil {
		return err
	}
	delete(fix.Extra, "score")
	if len(fix.Extra) == 0 {
		fix.Extra = nil
	}
	c.Fix = fix
	c.Score = scored.Score
	return nil
}

// MethodRecord is the set of distinct fields a method writes and its
// affinity: how many of the unresolved fields of its class it writes.
type MethodRecord struct {
	Class    string
	Method   string
	URI      string
	Fields   map[string]struct{}
	Affinity int
}

// Writes reports whether the method writes field.
func (m *MethodRecord) Writes(field string) bool {
	_, ok := m.Fields[field]
	return ok
}

type methodKey struct{ class, method string }

type fieldKey struct{ class, field string }

// Records groups writes by (class, method). Repeated writes of a field by
// the same method count once. Records are ordered by class then method.
func Records(writes []FieldWrite) []*MethodRecord {
	byKey := make(map[methodKey]*MethodRecord)
	for _, w := range writes {
		k := methodKey{w.Class, w.Method}
		rec, ok := byKey[k]
		if !ok {
			rec = &MethodRecord{Class: w.Class, Method: w.Method, URI: w.URI, Fields: make(map[string]struct{})}
			byKey[k] = rec
		}
		if rec.URI == "" {
			rec.URI = w.URI
		}
		rec.Fields[w.Field] = struct{}{}
	}
	out := make([]*MethodRecord, 0, len(byKey))
	for _, rec := range byKey {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Class != out[j].Class {
			return out[i].Class < out[j].Class
		}
		return out[i].Method < out[j].Method
	})
	return out
}

// Unresolved keeps the findings reporting an uninitialized field.
func Unresolved(findings []finding.Finding) []finding.Finding {
	var out []finding.Finding
	for _, f := range findings {
		if f.Kind == finding.KindField && f.Reason == finding.ReasonFieldNoInit {
			out = append(out, f)
		}
	}
	return out
}

// Find runs the heuristic over unresolved-field findings and the traced
// writes of one build and returns at most one candidate per class, ordered
// by class. Findings that are not unresolved-field findings are ignored.
// annotation is the initializer annotation to inject.
func Find(findings []finding.Finding, writes []FieldWrite, annotation string) []Candidate {
	fields := distinctFields(Unresolved(findings))
	records := Records(writes)

	byClass := make(map[string][]*MethodRecord)
	for _, rec := range records {
		byClass[rec.Class] = append(byClass[rec.Class], rec)
	}

	for _, fk := range fields {
		for _, rec := range byClass[fk.class] {
			if rec.Writes(fk.field) {
				rec.Affinity++
			}
		}
	}

	var candidates []Candidate
	for _, fk := range fields {
		var best *MethodRecord
		// Records are sorted by method, so the first of equal scores wins.
		for _, rec := range byClass[fk.class] {
			if !rec.Writes(fk.field) {
				continue
			}
			if best == nil || rec.Affinity > best.Affinity {
				best = rec
			}
		}
		if best == nil || best.Affinity <= 1 {
			continue
		}
		candidates = append(candidates, candidate(best, annotation))
	}
	return Dedup(candidates)
}

// Dedup keeps the highest-scoring candidate of each class. Equal scores
// resolve to the lexically smallest method. The result is ordered by class.
func Dedup(candidates []Candidate) []Candidate {
	best := make(map[string]Candidate)
	for _, c := range candidates {
		cur, ok := best[c.Class]
		if !ok || c.Score > cur.Score || (c.Score == cur.Score && c.Method < cur.Method) {
			best[c.Class] = c
		}
	}
	out := make([]Candidate, 0, len(best))
	for _, c := range best {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Class < out[j].Class })
	return out
}

func candidate(rec *MethodRecord, annotation string) Candidate {
	return Candidate{
		Fix: finding.Fix{
			Location: finding.Location{
				Kind:   finding.KindMethod,
				Class:  rec.Class,
				Method: rec.Method,
				URI:    rec.URI,
				Pkg:    finding.PackageOf(rec.Class),
			},
			Annotation: annotation,
			Inject:     true,
			Reason:     finding.ReasonInitializer,
		},
		Score: rec.Affinity,
	}
}

// distinctFields returns the (class, field) of each distinct finding, in
// first-seen order. Findings are distinct by Key, so two findings on one
// field that differ elsewhere both count.
func distinctFields(unresolved []finding.Finding) []fieldKey {
	seen := make(map[string]struct{}, len(unresolved))
	var out []fieldKey
	for _, f := range unresolved {
		k := f.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, fieldKey{f.Class, f.Variable})
	}
	return out
}
