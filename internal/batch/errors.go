package batch

import (
	"errors"
	"fmt"
)

// ErrLocked reports that another run holds the state directory lock.
var ErrLocked = errors.New("batch: another run is in progress")

// ErrDestinationConflict reports an item whose output path was already
// claimed by an earlier item in the same selection.
var ErrDestinationConflict = errors.New("batch: destination already claimed")

// ValidationError reports a request that cannot start. No item has been
// touched when it is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("batch: invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
