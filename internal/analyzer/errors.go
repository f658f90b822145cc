package analyzer

import (
	"errors"
	"fmt"
)

// ErrToolFailed is matched by every failed analyzer or build invocation.
var ErrToolFailed = errors.New("external tool failed")

// ToolError describes a subprocess that could not start or exited nonzero.
type ToolError struct {
	Op       string // explore, apply or trace
	ExitCode int    // -1 when the process never ran to completion
	Stderr   string // tail of the process's stderr
	Err      error
}

func (e *ToolError) Error() string {
	msg := fmt.Sprintf("%s failed", e.Op)
	if e.ExitCode >= 0 {
		msg = fmt.Sprintf("%s exited with status %d", e.Op, e.ExitCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Stderr != "" {
		msg += "\nstderr: " + e.Stderr
	}
	return msg
}

func (e *ToolError) Unwrap() []error {
	return []error{ErrToolFailed, e.Err}
}
