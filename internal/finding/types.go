package finding

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Kind is the element a fix targets.
type Kind string

const (
	KindField     Kind = "FIELD"
	KindMethod    Kind = "METHOD"
	KindParameter Kind = "PARAMETER"
)

// Reason codes reported by the analyzer that nullfix acts on.
const (
	ReasonFieldNoInit = "FIELD_NO_INIT"
	ReasonInitializer = "Initializer"
)

// Location identifies a class member. Variable holds the field name for
// KindField and the parameter name for KindParameter; Index is only
// meaningful for KindParameter.
type Location struct {
	Kind     Kind   `json:"location"`
	Class    string `json:"class"`
	Method   string `json:"method"`
	Variable string `json:"param"`
	Index    string `json:"index,omitempty"`
	URI      string `json:"uri"`
	Pkg      string `json:"pkg,omitempty"`
}

// PackageOf returns the package portion of a fully qualified class name.
func PackageOf(class string) string {
	if i := strings.LastIndex(class, "."); i >= 0 {
		return class[:i]
	}
	return ""
}

// Flag is a boolean that also decodes from the strings "true" and "false".
// The analyzer writes inject flags as strings; nullfix always writes booleans.
type Flag bool

// UnmarshalJSON accepts true, false, "true", "false" and null.
func (f *Flag) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*f = false
		return nil
	}
	if unq, err := strconv.Unquote(s); err == nil {
		s = unq
	}
	if s == "" {
		*f = false
		return nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return fmt.Errorf("invalid inject flag %s", string(data))
	}
	*f = Flag(b)
	return nil
}

// Fix is an annotation injection at a location. Keys the analyzer writes
// that Fix does not model are kept in Extra and written back unchanged.
type Fix struct {
	Location
	Annotation string `json:"annotation"`
	Inject     Flag   `json:"inject"`
	Reason     string `json:"reason,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// Finding is one diagnostic from an exploration pass: a suggested fix and
// the analyzer's estimate of its effect. Lower Effect is better.
type Finding struct {
	Fix
	Effect    int   `json:"jump"`
	Followups []Fix `json:"followups,omitempty"`
}

// fixFields and findingFields carry the modeled keys without the custom
// codecs, so the codecs can delegate to encoding/json.
type fixFields Fix

type findingFields struct {
	fixFields
	Effect    int   `json:"jump"`
	Followups []Fix `json:"followups,omitempty"`
}

var fixKeys = map[string]bool{
	"location": true, "class": true, "method": true, "param": true, "index": true,
	"uri": true, "pkg": true, "annotation": true, "inject": true, "reason": true,
}

var findingKeys = map[string]bool{
	"location": true, "class": true, "method": true, "param": true, "index": true,
	"uri": true, "pkg": true, "annotation": true, "inject": true, "reason": true,
	"jump": true, "followups": true,
}

// UnmarshalJSON decodes the modeled keys and keeps the rest in Extra.
func (x *Fix) UnmarshalJSON(data []byte) error {
	var fields fixFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	extra, err := unknownKeys(data, fixKeys)
	if err != nil {
		return err
	}
	*x = Fix(fields)
	x.Extra = extra
	return nil
}

// MarshalJSON writes the modeled keys together with Extra.
func (x Fix) MarshalJSON() ([]byte, error) {
	return withExtra(fixFields(x), x.Extra)
}

// UnmarshalJSON decodes the modeled keys and keeps the rest in Extra.
func (f *Finding) UnmarshalJSON(data []byte) error {
	var fields findingFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	extra, err := unknownKeys(data, findingKeys)
	if err != nil {
		return err
	}
	f.Fix = Fix(fields.fixFields)
	f.Extra = extra
	f.Effect = fields.Effect
	f.Followups = fields.Followups
	return nil
}

// MarshalJSON writes the modeled keys together with Extra.
func (f Finding) MarshalJSON() ([]byte, error) {
	return withExtra(findingFields{
		fixFields: fixFields(f.Fix),
		Effect:    f.Effect,
		Followups: f.Followups,
	}, f.Extra)
}

// unknownKeys returns the members of the JSON object data whose names are
// not in known, each re-encoded canonically. It returns nil when there are
// none.
func unknownKeys(data []byte, known map[string]bool) (map[string]json.RawMessage, error) {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	var extra map[string]json.RawMessage
	for k, raw := range all {
		if known[k] {
			continue
		}
		v, err := canonical(raw)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		if extra == nil {
			extra = make(map[string]json.RawMessage)
		}
		extra[k] = v
	}
	return extra, nil
}

// canonical re-encodes raw with object keys sorted and numbers kept as
// written.
func canonical(raw json.RawMessage) (json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

// withExtra encodes known and adds every Extra key it does not already
// contain. Modeled keys always win.
func withExtra(known any, extra map[string]json.RawMessage) ([]byte, error) {
	data, err := json.Marshal(known)
	if err != nil || len(extra) == 0 {
		return data, err
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, err
	}
	for k, v := range extra {
		if _, ok := obj[k]; !ok {
			obj[k] = v
		}
	}
	return json.Marshal(obj)
}

// Key returns the canonical encoding of f, unmodeled keys included. Two
// findings are the same finding exactly when their keys are equal.
func (f Finding) Key() string {
	data, err := json.Marshal(f)
	if err != nil {
		// Extra only holds values that decoded as JSON.
		panic(fmt.Sprintf("finding: marshal key: %v", err))
	}
	return string(data)
}

// Equal reports whether f and other are structurally identical.
func (f Finding) Equal(other Finding) bool {
	return f.Key() == other.Key()
}

// String returns a compact one-line description.
func (f Finding) String() string {
	switch f.Kind {
	case KindField:
		return fmt.Sprintf("%s %s.%s (%s, effect %d)", f.Kind, f.Class, f.Variable, f.Reason, f.Effect)
	case KindParameter:
		return fmt.Sprintf("%s %s#%s[%s] (%s, effect %d)", f.Kind, f.Class, f.Method, f.Index, f.Reason, f.Effect)
	default:
		return fmt.Sprintf("%s %s#%s (%s, effect %d)", f.Kind, f.Class, f.Method, f.Reason, f.Effect)
	}
}

// Report is the {"reports": [...]} record used both for a single round and
// for the accumulated set.
type Report struct {
	Reports []Finding `json:"reports"`
}

// Batch is the {"fixes": [...]} record consumed by the apply pass.
type Batch[T any] struct {
	Fixes []T `json:"fixes"`
}
