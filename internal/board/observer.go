package board

import "github.com/managershow/esteira/internal/models"

// EventType says which mutation produced an Event
type EventType string

const (
	EventMoved    EventType = "moved"
	EventRestored EventType = "restored"
	EventHydrated EventType = "hydrated"
	EventExternal EventType = "external"
	EventRemoved  EventType = "removed"
)

// Event describes an applied store mutation. Stage and index fields are set
// for moves and external changes; restores and hydrations replace everything.
type Event struct {
	Type      EventType
	EntityID  string
	From      models.Stage
	To        models.Stage
	FromIndex int
	Index     int
	Version   uint64
}

// Observer is called synchronously after each mutation. Observers may read
// the store but must not mutate it.
type Observer func(Event)

// Subscribe registers an observer and returns a function that removes it
func (s *Store) Subscribe(obs Observer) (unsubscribe func()) {
	s.obsMu.Lock()
	id := s.nextObsID
	s.nextObsID++
	s.observers[id] = obs
	s.obsMu.Unlock()

	return func() {
		s.obsMu.Lock()
		delete(s.observers, id)
		s.obsMu.Unlock()
	}
}

func (s *Store) notify(ev Event) {
	s.obsMu.Lock()
	observers := make([]Observer, 0, len(s.observers))
	for _, obs := range s.observers {
		observers = append(observers, obs)
	}
	s.obsMu.Unlock()

	for _, obs := range observers {
		obs(ev)
	}
}
