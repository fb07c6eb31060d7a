package subagent

import (
	"errors"
	"fmt"
)

// MissingFieldError rejects a dispatch that lacks a required field.
// The rejection is synchronous: the task never reaches a worker and
// stays pending on the run.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("dispatch missing required field: %s", e.Field)
}

// IsMissingField reports whether err wraps a MissingFieldError.
func IsMissingField(err error) bool {
	var mf *MissingFieldError
	return errors.As(err, &mf)
}

// Failure carries a worker-side error. The message is propagated
// verbatim, never rewritten or summarized.
type Failure struct {
	Message string
}

func (e *Failure) Error() string { return e.Message }

// AsFailure extracts a Failure from err, if present.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	ok := errors.As(err, &f)
	return f, ok
}
