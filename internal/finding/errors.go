package finding

import "errors"

var (
	// ErrMissingArtifact means the analyzer did not produce a file it was
	// expected to write.
	ErrMissingArtifact = errors.New("expected artifact not found")
	// ErrCorruptState means a persisted or produced record could not be decoded.
	ErrCorruptState = errors.New("state is unreadable")
)
