package models

import (
	"fmt"
	"strings"
	"time"
)

// Entity is a card on a board: a show on the Agenda or a lead on the CRM.
// An entity belongs to exactly one stage at any instant.
type Entity struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	Kind        Kind      `json:"kind"`
	Stage       Stage     `json:"stage"`
	Title       string    `json:"title"`
	Counterpart string    `json:"counterpart,omitempty"` // contractor name
	City        string    `json:"city,omitempty"`
	Date        time.Time `json:"date"`
	Position    int       `json:"position"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Validate checks the fields every backend requires before a write.
// An empty ID is allowed; backends assign one.
func (e *Entity) Validate() error {
	switch {
	case e == nil:
		return fmt.Errorf("%w: nil", ErrInvalidEntity)
	case e.TenantID == "":
		return fmt.Errorf("%w: tenant ID is required", ErrInvalidEntity)
	case !e.Kind.Valid():
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidEntity, e.Kind)
	case e.Stage == "":
		return fmt.Errorf("%w: stage is required", ErrInvalidEntity)
	case strings.TrimSpace(e.Title) == "":
		return fmt.Errorf("%w: title is required", ErrInvalidEntity)
	case len(e.Title) > MaxTitleLength:
		return fmt.Errorf("%w: title exceeds %d characters", ErrInvalidEntity, MaxTitleLength)
	case len(e.ID) > MaxEntityIDLength:
		return fmt.Errorf("%w: ID exceeds %d characters", ErrInvalidEntity, MaxEntityIDLength)
	}
	return nil
}

// Clone returns a copy of the entity that shares no memory with e
func (e *Entity) Clone() *Entity {
	if e == nil {
		return nil
	}
	c := *e
	return &c
}

// GetID returns the entity ID (used by the CLI quiet output mode)
func (e *Entity) GetID() string {
	return e.ID
}

// StageChange describes an entity landing in a stage at a position.
// It is both the unit persisted by the sync layer and the unit pushed back
// to boards as an external notification.
type StageChange struct {
	TenantID string `json:"tenant_id"`
	Kind     Kind   `json:"kind"`
	EntityID string `json:"entity_id"`
	Stage    Stage  `json:"stage"`
	Position int    `json:"position"`

	// Origin is the client ID that produced the change. Boards ignore
	// changes carrying their own origin.
	Origin string `json:"origin,omitempty"`

	// Entity is set when the notification carries the full record, which
	// lets a board learn about entities it has never seen.
	Entity *Entity `json:"entity,omitempty"`

	// Deleted marks the entity as removed; Stage is where it was.
	Deleted bool `json:"deleted,omitempty"`
}
