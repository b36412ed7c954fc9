package events

import (
	"time"

	"github.com/managershow/esteira/internal/models"
)

// ProtocolVersion is the wire protocol version spoken by client and daemon
const ProtocolVersion = 1

// EventType indicates what kind of change occurred
type EventType string

const (
	EventStageChanged  EventType = "stage_changed"
	EventEntityCreated EventType = "entity_created"
	EventEntityDeleted EventType = "entity_deleted"
	EventPing          EventType = "ping"
	EventPong          EventType = "pong"
)

// Event is a board change notification
type Event struct {
	Type       EventType
	TenantID   string         `json:",omitempty"` // For filtering - which tenant's board changed
	Kind       models.Kind    `json:",omitempty"`
	EntityID   string         `json:",omitempty"`
	Stage      models.Stage   `json:",omitempty"`
	Position   int            `json:",omitempty"`
	Origin     string         `json:",omitempty"` // client that produced the change
	Entity     *models.Entity `json:",omitempty"` // full record for entity_created
	Timestamp  time.Time      // When the event occurred
	SequenceID int64          // Monotonically increasing sequence number for ordering
}

// SubscribeMessage is sent by clients to subscribe to a tenant's updates
type SubscribeMessage struct {
	TenantID string // "" = all tenants
}

// Message wraps events and control messages for wire protocol
type Message struct {
	Version   int
	Type      string            // "event", "subscribe", "ping", "pong"
	Event     *Event            `json:",omitempty"`
	Subscribe *SubscribeMessage `json:",omitempty"`
}

// NewStageChanged builds the event announcing a committed stage change
func NewStageChanged(change models.StageChange) Event {
	typ := EventStageChanged
	switch {
	case change.Deleted:
		typ = EventEntityDeleted
	case change.Entity != nil:
		typ = EventEntityCreated
	}
	return Event{
		Type:      typ,
		TenantID:  change.TenantID,
		Kind:      change.Kind,
		EntityID:  change.EntityID,
		Stage:     change.Stage,
		Position:  change.Position,
		Origin:    change.Origin,
		Entity:    change.Entity,
		Timestamp: time.Now(),
	}
}

// StageChange converts the event back into the board's change record
func (e Event) StageChange() models.StageChange {
	return models.StageChange{
		TenantID: e.TenantID,
		Kind:     e.Kind,
		EntityID: e.EntityID,
		Stage:    e.Stage,
		Position: e.Position,
		Origin:   e.Origin,
		Entity:   e.Entity,
		Deleted:  e.Type == EventEntityDeleted,
	}
}

// IsBoardChange reports whether the event describes a board mutation
func (e Event) IsBoardChange() bool {
	switch e.Type {
	case EventStageChanged, EventEntityCreated, EventEntityDeleted:
		return true
	}
	return false
}

// key identifies the entity an event is about, for coalescing
func (e Event) key() string {
	return e.TenantID + "\x00" + string(e.Kind) + "\x00" + e.EntityID
}
