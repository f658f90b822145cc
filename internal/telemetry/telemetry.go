// Package telemetry provides a JSONL event stream for recording what a
// nullfix run did: every analyzer invocation, round boundary and merge is
// recorded as a structured JSON event, so runs can be audited and followed
// live with `nullfix telemetry -f`.
package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Event kinds identify the type of telemetry event.
const (
	KindRunStart       = "run_start"
	KindRunDone        = "run_done"
	KindRoundStart     = "round_start"
	KindRoundDone      = "round_done"
	KindToolStart      = "tool_start"
	KindToolDone       = "tool_done"
	KindFixesSelected  = "fixes_selected"
	KindPreprocessDone = "preprocess_done"
)

// Event represents a single telemetry record. Each event carries a timestamp,
// a kind tag, and optional context identifiers (run, round) along with
// arbitrary structured data.
type Event struct {
	Timestamp time.Time `json:"ts"`
	Kind      string    `json:"kind"`
	RunID     string    `json:"run,omitempty"`
	Round     int       `json:"round,omitempty"`
	Data      any       `json:"data,omitempty"`
}

// ToolData is the payload of tool_start and tool_done events.
type ToolData struct {
	Op         string `json:"op"`
	DurationMs int64  `json:"duration_ms,omitempty"`
	Error      string `json:"error,omitempty"`
}

// RoundData is the payload of round_done and fixes_selected events.
type RoundData struct {
	Reported    int `json:"reported"`
	Selected    int `json:"selected"`
	New         int `json:"new"`
	Accumulated int `json:"accumulated"`
}

// RunData is the payload of run_done events.
type RunData struct {
	Outcome    string `json:"outcome"`
	Rounds     int    `json:"rounds"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// Emitter writes telemetry events to a JSONL file. It is safe for concurrent
// use by multiple goroutines. A nil *Emitter is a valid no-op emitter.
type Emitter struct {
	file *os.File
	enc  *json.Encoder
	mu   sync.Mutex
	now  func() time.Time
}

// NewEmitter creates a new Emitter that writes JSONL events to the file at
// path. The file is created if it does not exist, or appended to if it does.
func NewEmitter(path string) (*Emitter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("telemetry: open %s: %w", path, err)
	}
	return &Emitter{
		file: f,
		enc:  json.NewEncoder(f),
		now:  time.Now,
	}, nil
}

// Emit writes a single event to the JSONL file, stamping it with the
// current time when Timestamp is zero. Calling Emit on a nil Emitter is a
// no-op.
func (e *Emitter) Emit(evt Event) error {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if evt.Timestamp.IsZero() {
		evt.Timestamp = e.now().UTC()
	}
	if err := e.enc.Encode(evt); err != nil {
		return fmt.Errorf("telemetry: encode event: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying file. Calling Close on a nil
// Emitter is a no-op.
func (e *Emitter) Close() error {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.file.Close(); err != nil {
		return fmt.Errorf("telemetry: close: %w", err)
	}
	return nil
}
