package board

import (
	"github.com/managershow/esteira/internal/models"
)

// Snapshot is an immutable copy of a store's partition, used to roll back an
// optimistic move. Snapshots can be restored any number of times.
type Snapshot struct {
	columns map[models.Stage][]*models.Entity
	version uint64
}

// Version is the store version the snapshot was taken at
func (s *Snapshot) Version() uint64 {
	return s.version
}

// Column returns copies of the entities of a stage in the snapshot
func (s *Snapshot) Column(stage models.Stage) []*models.Entity {
	return cloneEntities(s.columns[stage])
}

// IDs returns entity IDs per stage, in order
func (s *Snapshot) IDs() map[models.Stage][]string {
	out := make(map[models.Stage][]string, len(s.columns))
	for stage, col := range s.columns {
		ids := make([]string, len(col))
		for i, e := range col {
			ids[i] = e.ID
		}
		out[stage] = ids
	}
	return out
}

// Snapshot captures the current partition
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// snapshotLocked copies the partition; the caller holds mu
func (s *Store) snapshotLocked() *Snapshot {
	columns := make(map[models.Stage][]*models.Entity, len(s.columns))
	for stage, col := range s.columns {
		columns[stage] = cloneEntities(col)
	}
	return &Snapshot{columns: columns, version: s.version}
}

// Restore replaces the current partition wholesale with the snapshot
func (s *Store) Restore(snap *Snapshot) {
	columns, where := snap.materialize()

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	s.columns = columns
	s.where = where
	s.version++
	ev := Event{Type: EventRestored, Version: s.version}
	s.mu.Unlock()

	s.notify(ev)
}

// RestoreIfUnchanged restores snap only if the store is at expectedVersion,
// i.e. nothing else mutated it since. Reports whether it restored.
func (s *Store) RestoreIfUnchanged(snap *Snapshot, expectedVersion uint64) bool {
	columns, where := snap.materialize()

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if s.version != expectedVersion {
		s.mu.Unlock()
		return false
	}
	s.columns = columns
	s.where = where
	s.version++
	ev := Event{Type: EventRestored, Version: s.version}
	s.mu.Unlock()

	s.notify(ev)
	return true
}

// materialize builds fresh store maps from the snapshot
func (s *Snapshot) materialize() (map[models.Stage][]*models.Entity, map[string]models.Stage) {
	columns := make(map[models.Stage][]*models.Entity, len(s.columns))
	where := make(map[string]models.Stage)
	for stage, col := range s.columns {
		cloned := cloneEntities(col)
		columns[stage] = cloned
		for _, e := range cloned {
			where[e.ID] = stage
		}
	}
	return columns, where
}
