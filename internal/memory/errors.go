package memory

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced by the engine. Callers match with errors.Is.
var (
	ErrNotFound        = errors.New("record not found")
	ErrValidation      = errors.New("validation failed")
	ErrCorruptSnapshot = errors.New("corrupt snapshot")
)

// ValidationError describes a rejected record construction. It unwraps to
// ErrValidation so callers can match the class without inspecting the field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// notFound wraps ErrNotFound with the offending record id.
func notFound(id int64) error {
	return fmt.Errorf("record %d: %w", id, ErrNotFound)
}
