package board

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/managershow/esteira/internal/models"
	"github.com/managershow/esteira/internal/registry"
)

// ============================================================================
// TEST HELPERS
// ============================================================================

const (
	stageLead        models.Stage = "LEAD"
	stageNegotiation models.Stage = "NEGOTIATION"
	stageContracted  models.Stage = "CONTRACTED"
)

func newTestRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.New("test", []registry.StageDef{
		{Stage: stageLead, Label: "Lead"},
		{Stage: stageNegotiation, Label: "Negotiation"},
		{Stage: stageContracted, Label: "Contracted", Terminal: true},
	})
	require.NoError(t, err)
	return reg
}

// newScenarioStore builds LEAD = [E1, E2] with the other columns empty
func newScenarioStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(newTestRegistry(t))
	s.Hydrate([]*models.Entity{
		{ID: "E1", TenantID: "t1", Kind: "test", Stage: stageLead, Position: 0},
		{ID: "E2", TenantID: "t1", Kind: "test", Stage: stageLead, Position: 1},
	})
	return s
}

func columnIDs(t *testing.T, s *Store, stage models.Stage) []string {
	t.Helper()
	col, err := s.GetColumn(stage)
	require.NoError(t, err)
	ids := make([]string, 0, len(col))
	for _, e := range col {
		ids = append(ids, e.ID)
	}
	return ids
}

// assertPartition checks every entity appears in exactly one column and that
// stage/position fields agree with the column layout
func assertPartition(t *testing.T, s *Store, want []string) {
	t.Helper()
	seen := make(map[string]int)
	for _, col := range s.Columns() {
		for i, e := range col.Entities {
			seen[e.ID]++
			assert.Equal(t, col.Stage, e.Stage, "entity %s stage field", e.ID)
			assert.Equal(t, i, e.Position, "entity %s position field", e.ID)
		}
	}
	for _, id := range want {
		assert.Equal(t, 1, seen[id], "entity %s should appear exactly once", id)
	}
	assert.Len(t, seen, len(want))
	assert.Equal(t, len(want), s.Len())
}

// ============================================================================
// MOVE TESTS
// ============================================================================

func TestMoveEntity_ScenarioA(t *testing.T) {
	s := newScenarioStore(t)

	require.NoError(t, s.MoveEntity("E1", stageLead, stageNegotiation, 0))

	assert.Equal(t, []string{"E2"}, columnIDs(t, s, stageLead))
	assert.Equal(t, []string{"E1"}, columnIDs(t, s, stageNegotiation))

	e, ok := s.Get("E1")
	require.True(t, ok)
	assert.Equal(t, stageNegotiation, e.Stage)
}

func TestMoveEntity_ClampsIndex(t *testing.T) {
	s := newScenarioStore(t)

	require.NoError(t, s.MoveEntity("E1", stageLead, stageNegotiation, 99))
	require.NoError(t, s.MoveEntity("E2", stageLead, stageNegotiation, -5))

	assert.Equal(t, []string{"E2", "E1"}, columnIDs(t, s, stageNegotiation))
	assert.Empty(t, columnIDs(t, s, stageLead))
}

func TestMoveEntity_ReorderWithinColumn(t *testing.T) {
	s := newScenarioStore(t)

	require.NoError(t, s.MoveEntity("E1", stageLead, stageLead, 1))
	assert.Equal(t, []string{"E2", "E1"}, columnIDs(t, s, stageLead))

	require.NoError(t, s.MoveEntity("E1", stageLead, stageLead, models.AppendPosition))
	assert.Equal(t, []string{"E2", "E1"}, columnIDs(t, s, stageLead))
}

func TestMoveEntity_SameSlotIsNoOp(t *testing.T) {
	s := newScenarioStore(t)
	before := s.Snapshot()
	version := s.Version()

	notified := 0
	s.Subscribe(func(Event) { notified++ })

	require.NoError(t, s.MoveEntity("E2", stageLead, stageLead, 1))

	assert.Equal(t, before.IDs(), s.Snapshot().IDs())
	assert.Equal(t, version, s.Version())
	assert.Zero(t, notified)
}

func TestMoveEntity_Errors(t *testing.T) {
	s := newScenarioStore(t)

	err := s.MoveEntity("E1", stageLead, "ARCHIVED", 0)
	assert.ErrorIs(t, err, models.ErrUnknownStage)

	err = s.MoveEntity("E1", stageNegotiation, stageContracted, 0)
	assert.ErrorIs(t, err, models.ErrStaleState)

	err = s.MoveEntity("ghost", stageLead, stageContracted, 0)
	assert.ErrorIs(t, err, models.ErrEntityNotFound)

	assert.Equal(t, []string{"E1", "E2"}, columnIDs(t, s, stageLead))
}

func TestGetColumn_UnknownStage(t *testing.T) {
	s := newScenarioStore(t)
	_, err := s.GetColumn("ARCHIVED")
	assert.ErrorIs(t, err, models.ErrUnknownStage)
}

func TestGetColumn_ReturnsCopies(t *testing.T) {
	s := newScenarioStore(t)

	col, err := s.GetColumn(stageLead)
	require.NoError(t, err)
	col[0].Stage = stageContracted
	col[0].Title = "mutated"

	e, _ := s.Get("E1")
	assert.Equal(t, stageLead, e.Stage)
	assert.Empty(t, e.Title)
}

// TestPartitionInvariant_RandomMoves runs random move/snapshot/restore
// sequences and checks the partition after every step.
func TestPartitionInvariant_RandomMoves(t *testing.T) {
	s := NewStore(newTestRegistry(t))
	ids := []string{"A", "B", "C", "D", "E", "F"}
	stages := s.Registry().ListStages()

	var seed []*models.Entity
	for i, id := range ids {
		seed = append(seed, &models.Entity{ID: id, Stage: stages[i%len(stages)], Position: i})
	}
	s.Hydrate(seed)

	rng := rand.New(rand.NewSource(42))
	var snaps []*Snapshot

	for step := 0; step < 500; step++ {
		switch rng.Intn(10) {
		case 0:
			snaps = append(snaps, s.Snapshot())
		case 1:
			if len(snaps) > 0 {
				s.Restore(snaps[rng.Intn(len(snaps))])
			}
		default:
			id := ids[rng.Intn(len(ids))]
			from, _, ok := s.Locate(id)
			require.True(t, ok)
			to := stages[rng.Intn(len(stages))]
			require.NoError(t, s.MoveEntity(id, from, to, rng.Intn(8)-2))
		}
		assertPartition(t, s, ids)
	}
}

// ============================================================================
// SNAPSHOT / RESTORE TESTS
// ============================================================================

func TestRestore_ReturnsExactPartition(t *testing.T) {
	s := newScenarioStore(t)
	snap := s.Snapshot()

	require.NoError(t, s.MoveEntity("E1", stageLead, stageNegotiation, 0))
	require.NoError(t, s.MoveEntity("E2", stageLead, stageContracted, 0))

	s.Restore(snap)

	assert.Equal(t, []string{"E1", "E2"}, columnIDs(t, s, stageLead))
	assert.Empty(t, columnIDs(t, s, stageNegotiation))
	assert.Empty(t, columnIDs(t, s, stageContracted))
	assertPartition(t, s, []string{"E1", "E2"})

	// The snapshot stays usable after a restore
	require.NoError(t, s.MoveEntity("E1", stageLead, stageNegotiation, 0))
	s.Restore(snap)
	assert.Equal(t, snap.IDs(), s.Snapshot().IDs())
}

func TestRestoreIfUnchanged(t *testing.T) {
	s := newScenarioStore(t)
	snap := s.Snapshot()

	require.NoError(t, s.MoveEntity("E1", stageLead, stageNegotiation, 0))
	afterMove := s.Version()

	require.NoError(t, s.MoveEntity("E2", stageLead, stageContracted, 0))
	assert.False(t, s.RestoreIfUnchanged(snap, afterMove), "store moved on; restore must be refused")
	assert.Equal(t, []string{"E2"}, columnIDs(t, s, stageContracted))

	assert.True(t, s.RestoreIfUnchanged(snap, s.Version()))
	assert.Equal(t, []string{"E1", "E2"}, columnIDs(t, s, stageLead))
}

func TestMoveWithSnapshot_CapturesStateBeforeMove(t *testing.T) {
	s := newScenarioStore(t)
	before := s.Snapshot().IDs()

	ev, snap, err := s.MoveWithSnapshot("E1", stageLead, stageNegotiation, 0)
	require.NoError(t, err)
	require.NotNil(t, ev)
	require.NotNil(t, snap)

	assert.Equal(t, ev.Version, snap.Version()+1)
	assert.Equal(t, before, snap.IDs())
	assert.True(t, s.RestoreIfUnchanged(snap, ev.Version))
	assert.Equal(t, before, s.Snapshot().IDs())

	// Same slot: no event and no snapshot
	ev, snap, err = s.MoveWithSnapshot("E1", stageLead, stageLead, 0)
	require.NoError(t, err)
	assert.Nil(t, ev)
	assert.Nil(t, snap)
}

func TestRemove_RepacksColumn(t *testing.T) {
	s := newScenarioStore(t)
	v := s.Version()

	assert.True(t, s.Remove("E1"))
	assertPartition(t, s, []string{"E2"})
	assert.Equal(t, []string{"E2"}, columnIDs(t, s, stageLead))
	assert.Equal(t, v+1, s.Version())

	assert.False(t, s.Remove("E1"))
	assert.Equal(t, v+1, s.Version())

	_, ok := s.Get("E1")
	assert.False(t, ok)
}

// ============================================================================
// OBSERVER TESTS
// ============================================================================

func TestObservers_NotifiedSynchronously(t *testing.T) {
	s := newScenarioStore(t)

	var got []Event
	unsubscribe := s.Subscribe(func(ev Event) {
		// Observers see the post-mutation state
		stage, _, _ := s.Locate(ev.EntityID)
		if ev.Type == EventMoved {
			assert.Equal(t, ev.To, stage)
		}
		got = append(got, ev)
	})

	require.NoError(t, s.MoveEntity("E1", stageLead, stageNegotiation, 0))
	require.Len(t, got, 1)
	assert.Equal(t, EventMoved, got[0].Type)
	assert.Equal(t, "E1", got[0].EntityID)
	assert.Equal(t, stageLead, got[0].From)
	assert.Equal(t, stageNegotiation, got[0].To)
	assert.Equal(t, s.Version(), got[0].Version)

	s.Restore(s.Snapshot())
	require.Len(t, got, 2)
	assert.Equal(t, EventRestored, got[1].Type)

	unsubscribe()
	require.NoError(t, s.MoveEntity("E1", stageNegotiation, stageLead, 0))
	assert.Len(t, got, 2)
}

// ============================================================================
// HYDRATE / EXTERNAL TESTS
// ============================================================================

func TestHydrate_SortsAndSkipsUndeclared(t *testing.T) {
	s := NewStore(newTestRegistry(t))

	skipped := s.Hydrate([]*models.Entity{
		{ID: "B", Stage: stageLead, Position: 5},
		{ID: "A", Stage: stageLead, Position: 1},
		{ID: "X", Stage: "ARCHIVED"},
		{ID: "A", Stage: stageNegotiation},
		nil,
	})

	assert.Equal(t, 2, skipped)
	assert.Equal(t, []string{"A", "B"}, columnIDs(t, s, stageLead))
	assertPartition(t, s, []string{"A", "B"})
}

func TestApplyExternal_MovesKnownEntity(t *testing.T) {
	s := newScenarioStore(t)

	applied, err := s.ApplyExternal(models.StageChange{EntityID: "E2", Stage: stageContracted, Position: 0})
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, []string{"E2"}, columnIDs(t, s, stageContracted))

	// Same slot again changes nothing
	applied, err = s.ApplyExternal(models.StageChange{EntityID: "E2", Stage: stageContracted, Position: 0})
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestApplyExternal_InsertsFullRecord(t *testing.T) {
	s := newScenarioStore(t)

	applied, err := s.ApplyExternal(models.StageChange{
		EntityID: "E3",
		Stage:    stageLead,
		Position: 0,
		Entity:   &models.Entity{Title: "Festival"},
	})
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, []string{"E3", "E1", "E2"}, columnIDs(t, s, stageLead))

	e, ok := s.Get("E3")
	require.True(t, ok)
	assert.Equal(t, "Festival", e.Title)
	assert.Equal(t, stageLead, e.Stage)
}

func TestApplyExternal_IgnoresUnknownWithoutRecord(t *testing.T) {
	s := newScenarioStore(t)

	applied, err := s.ApplyExternal(models.StageChange{EntityID: "ghost", Stage: stageLead})
	require.NoError(t, err)
	assert.False(t, applied)

	_, err = s.ApplyExternal(models.StageChange{EntityID: "E1", Stage: "ARCHIVED"})
	assert.ErrorIs(t, err, models.ErrUnknownStage)
}
