package database

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/managershow/esteira/internal/events"
	"github.com/managershow/esteira/internal/models"
)

// ============================================================================
// DATABASE SETUP HELPERS
// ============================================================================

// setupTestDB creates an in-memory database and runs migrations
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// recordingPublisher captures events sent by the repository
type recordingPublisher struct {
	mu   sync.Mutex
	sent []events.Event
}

func (p *recordingPublisher) Connect(context.Context) error { return nil }
func (p *recordingPublisher) SendEvent(e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, e)
	return nil
}
func (p *recordingPublisher) Listen(context.Context) (<-chan events.Event, error) { return nil, nil }
func (p *recordingPublisher) Subscribe(string) error                              { return nil }
func (p *recordingPublisher) SetNotifyFunc(events.NotifyFunc)                     {}
func (p *recordingPublisher) Close() error                                        { return nil }

func (p *recordingPublisher) published() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Event(nil), p.sent...)
}

// seedShows creates titles in stage in order and returns their IDs
func seedShows(t *testing.T, repo *EntityRepo, stage models.Stage, titles ...string) []string {
	t.Helper()
	ids := make([]string, 0, len(titles))
	for _, title := range titles {
		e, err := repo.CreateEntity(context.Background(), &models.Entity{
			TenantID: "t1",
			Kind:     models.KindShow,
			Stage:    stage,
			Title:    title,
			Position: models.AppendPosition,
		})
		require.NoError(t, err)
		ids = append(ids, e.ID)
	}
	return ids
}

// stageLayout returns entity IDs of a stage in position order, checking
// positions are dense
func stageLayout(t *testing.T, repo *EntityRepo, stage models.Stage) []string {
	t.Helper()
	all, err := repo.LoadEntities(context.Background(), "t1", models.KindShow)
	require.NoError(t, err)

	var ids []string
	for _, e := range all {
		if e.Stage != stage {
			continue
		}
		require.Equal(t, len(ids), e.Position, "positions in %s must be dense", stage)
		ids = append(ids, e.ID)
	}
	return ids
}
