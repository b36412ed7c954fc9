package models

import "time"

// DragState is the lifecycle state of a drag controller
type DragState int

const (
	DragIdle DragState = iota
	DragDragging
	DragDropping
	DragCanceled
)

// String returns the human readable state name
func (s DragState) String() string {
	switch s {
	case DragIdle:
		return "idle"
	case DragDragging:
		return "dragging"
	case DragDropping:
		return "dropping"
	case DragCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// DragSession is the ephemeral record of one pointer-driven move gesture.
// It is created on pick-up, mutated on hover and consumed on drop or cancel.
// Sessions are never persisted.
type DragSession struct {
	ID          string
	EntityID    string
	OriginStage Stage
	HoverStage  *Stage // nil until the pointer is over a declared column
	StartedAt   time.Time
}

// TargetStage returns the hovered stage, falling back to the origin
func (s *DragSession) TargetStage() Stage {
	if s.HoverStage != nil {
		return *s.HoverStage
	}
	return s.OriginStage
}
