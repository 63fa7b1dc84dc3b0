package core

import "fmt"

// ErrNotFound is returned when reference validation fails within transactional helpers.
type ErrNotFound struct {
	Entity EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// ErrAlreadyExists is returned when a create collides with an existing id.
type ErrAlreadyExists struct {
	Entity EntityType
	ID     string
}

func (e ErrAlreadyExists) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Entity, e.ID)
}

// ErrIllegalTransition is returned when a requested workflow transition is not
// in the observation's legal transition set.
type ErrIllegalTransition struct {
	ObservationID string
	From          State
	To            State
}

func (e ErrIllegalTransition) Error() string {
	return fmt.Sprintf("observation %s cannot transition from %s to %s", e.ObservationID, e.From.Title(), e.To.Title())
}

// ErrBlindOffset is the hard validation error raised when a blind-offset
// target is added to or removed from an asterism through the generic editing
// path. It is enforced unconditionally, regardless of workflow state.
type ErrBlindOffset struct {
	TargetID string
	Adding   bool
}

func (e ErrBlindOffset) Error() string {
	if e.Adding {
		return "Blind offset targets cannot be added to an asterism"
	}
	return "Blind offset targets cannot be removed from an asterism"
}
