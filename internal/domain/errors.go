package domain

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed input rejected at the engine boundary.
// Params: optional field path and human-readable reason.
// Returns: error surfaced to callers as a rejected operation.
type ValidationError struct {
	Field  string
	Reason string
}

// Error renders field-qualified validation message.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

// NewValidationError builds validation error for one field.
// Params: field path (may be empty) and printf-style reason.
// Returns: *ValidationError as error.
func NewValidationError(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsValidationError reports whether err (or any wrapped error) is a validation failure.
// Params: error chain to inspect.
// Returns: true for *ValidationError.
func IsValidationError(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}
