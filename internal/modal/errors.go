package modal

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned when an action is not allowed in the
	// modal's current state.
	ErrInvalidTransition = errors.New("modal: invalid state transition")
	// ErrReadOnly is returned when submitting a view modal of an entity that
	// cannot be edited.
	ErrReadOnly = errors.New("modal: entity is read-only")
	// ErrNotAddable is returned when opening an add modal for an entity that
	// has none.
	ErrNotAddable = errors.New("modal: entity does not accept new records")
	// ErrUnknownField is returned when setting a field the form does not have.
	ErrUnknownField = errors.New("modal: unknown form field")
)

// ValidationError is a client-side rejection raised before any network
// call: a missing required field or an unacceptable file.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
