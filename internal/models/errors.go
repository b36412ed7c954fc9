package models

import (
	"errors"
	"fmt"
)

// Transition errors shared by the registry, the board store, the drag
// controller and the transition committer.
var (
	// ErrUnknownStage indicates a stage that the pipeline does not declare.
	// This is a configuration or programming error.
	ErrUnknownStage = errors.New("unknown stage")

	// ErrSessionConflict indicates a drag began while another session (or a
	// commit for the same entity) is still active
	ErrSessionConflict = errors.New("drag session already active")

	// ErrStaleState indicates the entity is no longer where the caller
	// believed it was, usually because it moved concurrently
	ErrStaleState = errors.New("entity moved since the drag began")

	// ErrIllegalTransition indicates a move rejected by business rules
	ErrIllegalTransition = errors.New("transition not allowed")

	// ErrTransitionFailed indicates persistence failed after an optimistic
	// apply; the board was rolled back and the move can be retried
	ErrTransitionFailed = errors.New("transition failed")

	// ErrEntityNotFound indicates the entity is not on the board
	ErrEntityNotFound = errors.New("entity not found")

	// ErrNoActiveSession indicates hover/drop/cancel without a dragging session
	ErrNoActiveSession = errors.New("no active drag session")

	// ErrInvalidEntity indicates an entity that fails validation before a write
	ErrInvalidEntity = errors.New("invalid entity")
)

// TransitionFailedError carries the persistence error that caused a rollback.
// It matches both ErrTransitionFailed and the underlying cause with errors.Is.
type TransitionFailedError struct {
	EntityID string
	From     Stage
	To       Stage
	Err      error
}

// Error implements the error interface.
func (e *TransitionFailedError) Error() string {
	return fmt.Sprintf("%s: moving %s from %s to %s: %v", ErrTransitionFailed, e.EntityID, e.From, e.To, e.Err)
}

// Unwrap exposes both the sentinel and the cause.
func (e *TransitionFailedError) Unwrap() []error {
	return []error{ErrTransitionFailed, e.Err}
}

// UnknownStage wraps ErrUnknownStage with the offending stage
func UnknownStage(stage Stage) error {
	return fmt.Errorf("%w: %q", ErrUnknownStage, stage)
}
