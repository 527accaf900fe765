package store

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates a missing or unauthorized resource lookup.
var ErrNotFound = errors.New("record not found")

// ErrValidation indicates input the caller can correct, e.g. a non-positive
// calendar duration. Wrap it with context via ValidationError.
var ErrValidation = errors.New("validation failed")

// ValidationError attaches a user-correctable reason to ErrValidation.
func ValidationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
