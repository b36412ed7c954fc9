// Package board holds the in-memory partition of a board's entities into
// stage columns. It is the single shared mutable resource of a board: the UI
// reads it, and only the transition committer and the external change feed
// write to it.
package board

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/managershow/esteira/internal/models"
	"github.com/managershow/esteira/internal/registry"
)

// Store is the authoritative partition of entities into columns.
//
// Every entity appears in exactly one column. MoveEntity, Restore, Hydrate,
// Remove and ApplyExternal are atomic: readers never observe an entity in zero or
// two columns. Observers are notified synchronously, in mutation order,
// before the mutating call returns.
type Store struct {
	reg *registry.Registry

	// notifyMu serializes mutation+notification so observers see changes in
	// the order they were applied. It is always taken before mu.
	notifyMu sync.Mutex

	mu      sync.RWMutex
	columns map[models.Stage][]*models.Entity
	where   map[string]models.Stage
	version uint64

	obsMu     sync.Mutex
	observers map[int]Observer
	nextObsID int
}

// NewStore creates an empty store with one column per declared stage
func NewStore(reg *registry.Registry) *Store {
	s := &Store{
		reg:       reg,
		columns:   make(map[models.Stage][]*models.Entity),
		where:     make(map[string]models.Stage),
		observers: make(map[int]Observer),
	}
	for _, stage := range reg.ListStages() {
		s.columns[stage] = nil
	}
	return s
}

// Registry returns the pipeline this store partitions by
func (s *Store) Registry() *registry.Registry {
	return s.reg
}

// Version is a counter bumped by every applied mutation
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Len returns the total number of entities on the board
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.where)
}

// GetColumn returns copies of the entities currently in stage, in order
func (s *Store) GetColumn(stage models.Stage) ([]*models.Entity, error) {
	if !s.reg.IsDeclared(stage) {
		return nil, models.UnknownStage(stage)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneEntities(s.columns[stage]), nil
}

// Columns returns the whole board as labelled columns in display order
func (s *Store) Columns() []models.Column {
	defs := s.reg.Columns()

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Column, 0, len(defs))
	for _, def := range defs {
		out = append(out, models.Column{
			Stage:    def.Stage,
			Label:    def.Label,
			Terminal: def.Terminal,
			Entities: cloneEntities(s.columns[def.Stage]),
		})
	}
	return out
}

// Get returns a copy of an entity
func (s *Store) Get(entityID string) (*models.Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stage, ok := s.where[entityID]
	if !ok {
		return nil, false
	}
	i := indexOf(s.columns[stage], entityID)
	return s.columns[stage][i].Clone(), true
}

// Locate returns the stage and index of an entity
func (s *Store) Locate(entityID string) (models.Stage, int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stage, ok := s.where[entityID]
	if !ok {
		return "", -1, false
	}
	return stage, indexOf(s.columns[stage], entityID), true
}

// MoveEntity removes the entity from fromStage and inserts it into toStage
// at targetIndex, clamped to the column bounds. Moving to the same stage
// reorders within the column; moving to the current slot is a no-op that
// neither bumps the version nor notifies.
func (s *Store) MoveEntity(entityID string, fromStage, toStage models.Stage, targetIndex int) error {
	_, err := s.TryMove(entityID, fromStage, toStage, targetIndex)
	return err
}

// TryMove is MoveEntity reporting the outcome: the event describing the
// applied move (final index and resulting store version), or nil when the
// move was a no-op.
func (s *Store) TryMove(entityID string, fromStage, toStage models.Stage, targetIndex int) (*Event, error) {
	ev, _, err := s.tryMove(entityID, fromStage, toStage, targetIndex, false)
	return ev, err
}

// MoveWithSnapshot is TryMove that also returns the partition as it was
// immediately before the move, captured under the same lock. The snapshot's
// version is always the event's version minus one.
func (s *Store) MoveWithSnapshot(entityID string, fromStage, toStage models.Stage, targetIndex int) (*Event, *Snapshot, error) {
	return s.tryMove(entityID, fromStage, toStage, targetIndex, true)
}

func (s *Store) tryMove(entityID string, fromStage, toStage models.Stage, targetIndex int, withSnapshot bool) (*Event, *Snapshot, error) {
	if err := s.reg.Validate(fromStage, toStage); err != nil {
		return nil, nil, err
	}

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	stage, ok := s.where[entityID]
	if !ok {
		s.mu.Unlock()
		return nil, nil, fmt.Errorf("%w: %s", models.ErrEntityNotFound, entityID)
	}
	if stage != fromStage {
		s.mu.Unlock()
		return nil, nil, fmt.Errorf("%w: %s is in %s, not %s", models.ErrStaleState, entityID, stage, fromStage)
	}

	from := indexOf(s.columns[fromStage], entityID)
	if toStage == fromStage && clamp(targetIndex, len(s.columns[fromStage])-1) == from {
		s.mu.Unlock()
		return nil, nil, nil
	}

	var snap *Snapshot
	if withSnapshot {
		snap = s.snapshotLocked()
	}
	to, _ := s.move(entityID, fromStage, from, toStage, targetIndex)
	s.version++
	ev := Event{
		Type:      EventMoved,
		EntityID:  entityID,
		From:      fromStage,
		To:        toStage,
		FromIndex: from,
		Index:     to,
		Version:   s.version,
	}
	s.mu.Unlock()

	s.notify(ev)
	return &ev, snap, nil
}

// move relocates an entity; the caller holds mu. Returns the final index and
// whether anything changed.
func (s *Store) move(entityID string, fromStage models.Stage, fromIndex int, toStage models.Stage, targetIndex int) (int, bool) {
	src := s.columns[fromStage]
	entity := src[fromIndex]

	// Same slot: nothing to do
	if fromStage == toStage && clamp(targetIndex, len(src)-1) == fromIndex {
		return fromIndex, false
	}

	src = append(src[:fromIndex:fromIndex], src[fromIndex+1:]...)
	s.columns[fromStage] = src

	dst := s.columns[toStage]
	to := clamp(targetIndex, len(dst))
	dst = insertAt(dst, to, entity)
	s.columns[toStage] = dst

	entity.Stage = toStage
	s.where[entityID] = toStage

	renumber(s.columns[fromStage])
	if toStage != fromStage {
		renumber(s.columns[toStage])
	}
	return to, true
}

// Remove deletes an entity from the board and reports whether it was there
func (s *Store) Remove(entityID string) bool {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	stage, ok := s.where[entityID]
	if !ok {
		s.mu.Unlock()
		return false
	}
	from := indexOf(s.columns[stage], entityID)
	col := s.columns[stage]
	s.columns[stage] = append(col[:from:from], col[from+1:]...)
	delete(s.where, entityID)
	renumber(s.columns[stage])
	s.version++
	ev := Event{
		Type:      EventRemoved,
		EntityID:  entityID,
		From:      stage,
		FromIndex: from,
		Index:     -1,
		Version:   s.version,
	}
	s.mu.Unlock()

	s.notify(ev)
	return true
}

// ApplyExternal merges a change pushed by the sync layer. Unknown entities
// are inserted only when the change carries the full record, and deletions
// remove the entity wherever it is. Returns whether the board changed.
func (s *Store) ApplyExternal(change models.StageChange) (bool, error) {
	if change.Deleted {
		return s.Remove(change.EntityID), nil
	}
	if !s.reg.IsDeclared(change.Stage) {
		return false, models.UnknownStage(change.Stage)
	}

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	ev := Event{
		Type:     EventExternal,
		EntityID: change.EntityID,
		To:       change.Stage,
	}

	stage, known := s.where[change.EntityID]
	switch {
	case known:
		from := indexOf(s.columns[stage], change.EntityID)
		to, moved := s.move(change.EntityID, stage, from, change.Stage, change.Position)
		if !moved {
			s.mu.Unlock()
			return false, nil
		}
		ev.From = stage
		ev.FromIndex = from
		ev.Index = to

	case change.Entity != nil:
		entity := change.Entity.Clone()
		entity.ID = change.EntityID
		entity.Stage = change.Stage
		dst := s.columns[change.Stage]
		to := clamp(change.Position, len(dst))
		s.columns[change.Stage] = insertAt(dst, to, entity)
		s.where[entity.ID] = change.Stage
		renumber(s.columns[change.Stage])
		ev.Index = to

	default:
		s.mu.Unlock()
		slog.Debug("ignoring external change for unknown entity",
			"entity_id", change.EntityID,
			"stage", change.Stage)
		return false, nil
	}

	s.version++
	ev.Version = s.version
	s.mu.Unlock()

	s.notify(ev)
	return true, nil
}

// Hydrate replaces the board with entities loaded from the sync layer.
// Entities referencing undeclared stages are dropped and logged. Within a
// column, entities are ordered by Position (stable for ties).
func (s *Store) Hydrate(entities []*models.Entity) int {
	columns := make(map[models.Stage][]*models.Entity, len(s.columns))
	for stage := range s.columns {
		columns[stage] = nil
	}
	where := make(map[string]models.Stage, len(entities))

	skipped := 0
	for _, e := range entities {
		if e == nil {
			continue
		}
		if !s.reg.IsDeclared(e.Stage) {
			slog.Warn("skipping entity with undeclared stage",
				"entity_id", e.ID,
				"stage", e.Stage,
				"kind", s.reg.Kind())
			skipped++
			continue
		}
		if _, dup := where[e.ID]; dup {
			slog.Warn("skipping duplicate entity", "entity_id", e.ID)
			skipped++
			continue
		}
		where[e.ID] = e.Stage
		columns[e.Stage] = append(columns[e.Stage], e.Clone())
	}

	for _, col := range columns {
		sort.SliceStable(col, func(i, j int) bool { return col[i].Position < col[j].Position })
		renumber(col)
	}

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	s.columns = columns
	s.where = where
	s.version++
	ev := Event{Type: EventHydrated, Version: s.version}
	s.mu.Unlock()

	s.notify(ev)
	return skipped
}

// cloneEntities deep-copies a column
func cloneEntities(col []*models.Entity) []*models.Entity {
	out := make([]*models.Entity, len(col))
	for i, e := range col {
		out[i] = e.Clone()
	}
	return out
}

func indexOf(col []*models.Entity, entityID string) int {
	for i, e := range col {
		if e.ID == entityID {
			return i
		}
	}
	return -1
}

func insertAt(col []*models.Entity, i int, e *models.Entity) []*models.Entity {
	col = append(col, nil)
	copy(col[i+1:], col[i:])
	col[i] = e
	return col
}

// clamp bounds i to [0, upper]
func clamp(i, upper int) int {
	if i < 0 {
		return 0
	}
	if i > upper {
		return upper
	}
	return i
}

func renumber(col []*models.Entity) {
	for i, e := range col {
		e.Position = i
	}
}
