package encounter

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no encounter exists for the given id, or
	// when a referenced artifact (such as an audio object) is missing.
	ErrNotFound = errors.New("encounter not found")

	// ErrConflict is returned when a lifecycle transition is not allowed
	// from the encounter's current status.
	ErrConflict = errors.New("operation conflicts with encounter status")
)

// PatchError reports a structured-update batch that could not be applied or
// whose result failed domain validation. The batch is atomic, so a PatchError
// means no part of it took effect.
type PatchError struct {
	Reason string
	Err    error
}

func (e *PatchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("patch rejected: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("patch rejected: %s", e.Reason)
}

func (e *PatchError) Unwrap() error { return e.Err }

// ExtractionError reports a failure of an upstream language or speech
// service. It maps to a bad-gateway response at the transport layer.
type ExtractionError struct {
	Stage string
	Err   error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed during %s: %v", e.Stage, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }
