package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by the service and adapter layers. Callers wrap
// them with fmt.Errorf("...: %w", err) to add context and match them with
// errors.Is; the HTTP layer maps each one to a status code.
var (
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrConflict        = errors.New("conflict")
	ErrExternalService = errors.New("payment processor unavailable")
)

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field  string
	Reason string
}

// NewValidationError builds a ValidationError for the given field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// InvalidTransitionError reports an attempted state change that is not
// present in the entity's transition table.
type InvalidTransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid %s transition from %s to %s", e.Entity, e.From, e.To)
}
