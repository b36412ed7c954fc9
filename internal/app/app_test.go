package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/managershow/esteira/internal/config"
	"github.com/managershow/esteira/internal/database"
	"github.com/managershow/esteira/internal/events"
	"github.com/managershow/esteira/internal/models"
	"github.com/managershow/esteira/internal/registry"
)

const testTenant = "tenant-1"

func setupTestRepo(t *testing.T) *database.EntityRepo {
	t.Helper()
	db, err := database.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return database.NewEntityRepo(db, nil)
}

func seed(t *testing.T, repo *database.EntityRepo, stage models.Stage, title string) *models.Entity {
	t.Helper()
	e, err := repo.CreateEntity(context.Background(), &models.Entity{
		TenantID: testTenant,
		Kind:     models.KindShow,
		Stage:    stage,
		Title:    title,
		Position: models.AppendPosition,
	})
	if err != nil {
		t.Fatalf("Failed to seed entity: %v", err)
	}
	return e
}

func newTestApp(t *testing.T, cfg *config.Config, repo *database.EntityRepo) *App {
	t.Helper()
	a, err := New(cfg, WithPersister(repo), WithClientID("client-a"))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestNewRequiresPersister(t *testing.T) {
	if _, err := New(config.Default()); !errors.Is(err, ErrNoPersister) {
		t.Fatalf("New() error = %v, want ErrNoPersister", err)
	}
}

func TestNewGeneratesClientID(t *testing.T) {
	a, err := New(nil, WithPersister(setupTestRepo(t)))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if a.ClientID() == "" {
		t.Error("expected a generated client ID")
	}
	if a.Config() == nil {
		t.Error("expected default config")
	}
}

func TestBoardHydratesOnce(t *testing.T) {
	repo := setupTestRepo(t)
	seed(t, repo, registry.StageSondagem, "Show A")
	seed(t, repo, registry.StageProposta, "Show B")

	a := newTestApp(t, config.Default(), repo)

	b, err := a.Board(context.Background(), testTenant, models.KindShow)
	if err != nil {
		t.Fatalf("Board() failed: %v", err)
	}
	if b.Store.Len() != 2 {
		t.Errorf("Store.Len() = %d, want 2", b.Store.Len())
	}

	again, err := a.Board(context.Background(), testTenant, models.KindShow)
	if err != nil {
		t.Fatalf("second Board() failed: %v", err)
	}
	if again != b {
		t.Error("Board() should return the cached board")
	}
	if got := len(a.Boards()); got != 1 {
		t.Errorf("Boards() = %d boards, want 1", got)
	}
}

func TestBoardRejectsBadInput(t *testing.T) {
	a := newTestApp(t, config.Default(), setupTestRepo(t))

	if _, err := a.Board(context.Background(), "", models.KindShow); err == nil {
		t.Error("expected error for empty tenant")
	}
	if _, err := a.Board(context.Background(), testTenant, "tasks"); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestGestureCommitsThroughRepo(t *testing.T) {
	repo := setupTestRepo(t)
	show := seed(t, repo, registry.StageSondagem, "Show A")

	a := newTestApp(t, config.Default(), repo)
	b, err := a.Board(context.Background(), testTenant, models.KindShow)
	if err != nil {
		t.Fatalf("Board() failed: %v", err)
	}

	ctrl := b.NewController()
	if _, err := ctrl.Begin(show.ID); err != nil {
		t.Fatalf("Begin() failed: %v", err)
	}
	if err := ctrl.Hover(registry.StageAssinado); err != nil {
		t.Fatalf("Hover() failed: %v", err)
	}
	if err := ctrl.Drop(context.Background(), 0); err != nil {
		t.Fatalf("Drop() failed: %v", err)
	}

	stored, err := repo.GetEntity(context.Background(), testTenant, models.KindShow, show.ID)
	if err != nil {
		t.Fatalf("GetEntity() failed: %v", err)
	}
	if stored.Stage != registry.StageAssinado {
		t.Errorf("stored stage = %s, want %s", stored.Stage, registry.StageAssinado)
	}
	if stage, _, _ := b.Store.Locate(show.ID); stage != registry.StageAssinado {
		t.Errorf("board stage = %s, want %s", stage, registry.StageAssinado)
	}
}

func TestPolicyFromConfig(t *testing.T) {
	repo := setupTestRepo(t)
	done := seed(t, repo, registry.StageConcluido, "Finished show")
	open := seed(t, repo, registry.StageSondagem, "Open show")

	cfg := config.Default()
	cfg.Policy.LockTerminalStages = true
	cfg.Policy.Transitions = map[models.Stage][]models.Stage{
		registry.StageSondagem: {registry.StageProposta},
	}

	a := newTestApp(t, cfg, repo)
	b, err := a.Board(context.Background(), testTenant, models.KindShow)
	if err != nil {
		t.Fatalf("Board() failed: %v", err)
	}

	err = b.Committer.AttemptMove(context.Background(), done.ID, registry.StageConcluido, registry.StageSondagem, 0)
	if !errors.Is(err, models.ErrIllegalTransition) {
		t.Errorf("leaving terminal stage: error = %v, want ErrIllegalTransition", err)
	}

	err = b.Committer.AttemptMove(context.Background(), open.ID, registry.StageSondagem, registry.StageEmEstrada, 0)
	if !errors.Is(err, models.ErrIllegalTransition) {
		t.Errorf("skipping stages: error = %v, want ErrIllegalTransition", err)
	}

	err = b.Committer.AttemptMove(context.Background(), open.ID, registry.StageSondagem, registry.StageProposta, 0)
	if err != nil {
		t.Errorf("allowed transition failed: %v", err)
	}
}

func TestApplyRoutesExternalChanges(t *testing.T) {
	repo := setupTestRepo(t)
	show := seed(t, repo, registry.StageSondagem, "Show A")

	a := newTestApp(t, config.Default(), repo)
	b, err := a.Board(context.Background(), testTenant, models.KindShow)
	if err != nil {
		t.Fatalf("Board() failed: %v", err)
	}

	change := models.StageChange{
		TenantID: testTenant,
		Kind:     models.KindShow,
		EntityID: show.ID,
		Stage:    registry.StageProposta,
		Origin:   "client-a",
	}

	if applied, _ := a.Apply(change); applied {
		t.Error("own echo should be ignored")
	}

	change.Origin = "client-b"
	applied, err := a.Apply(change)
	if err != nil || !applied {
		t.Fatalf("Apply() = %v, %v; want applied", applied, err)
	}
	if stage, _, _ := b.Store.Locate(show.ID); stage != registry.StageProposta {
		t.Errorf("stage = %s, want %s", stage, registry.StageProposta)
	}

	change.TenantID = "unloaded"
	if applied, _ := a.Apply(change); applied {
		t.Error("change for an unloaded board should be ignored")
	}
}

func TestRunFeedFromEvents(t *testing.T) {
	repo := setupTestRepo(t)
	show := seed(t, repo, registry.StageSondagem, "Show A")

	a := newTestApp(t, config.Default(), repo)
	b, err := a.Board(context.Background(), testTenant, models.KindShow)
	if err != nil {
		t.Fatalf("Board() failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	in := make(chan events.Event, 3)
	in <- events.Event{Type: events.EventPing}
	in <- events.NewStageChanged(models.StageChange{
		TenantID: testTenant,
		Kind:     models.KindShow,
		EntityID: show.ID,
		Stage:    registry.StageEmEstrada,
		Origin:   "client-b",
	})
	close(in)

	if err := a.RunFeed(ctx, FromEvents(ctx, in)); err != nil {
		t.Fatalf("RunFeed() failed: %v", err)
	}
	if stage, _, _ := b.Store.Locate(show.ID); stage != registry.StageEmEstrada {
		t.Errorf("stage = %s, want %s", stage, registry.StageEmEstrada)
	}
}

func TestRunFeedStopsOnContext(t *testing.T) {
	a := newTestApp(t, config.Default(), setupTestRepo(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := a.RunFeed(ctx, make(chan models.StageChange))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("RunFeed() error = %v, want context.Canceled", err)
	}
}

// gatedRepo blocks loads for one tenant until release is closed
type gatedRepo struct {
	*database.EntityRepo
	tenant  string
	started chan struct{}
	release chan struct{}
}

func (g *gatedRepo) LoadEntities(ctx context.Context, tenantID string, kind models.Kind) ([]*models.Entity, error) {
	if tenantID == g.tenant {
		close(g.started)
		select {
		case <-g.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return g.EntityRepo.LoadEntities(ctx, tenantID, kind)
}

func TestSlowBoardLoadDoesNotBlockOtherTenants(t *testing.T) {
	repo := setupTestRepo(t)
	show := seed(t, repo, registry.StageSondagem, "Show A")
	slowShow, err := repo.CreateEntity(context.Background(), &models.Entity{
		TenantID: "tenant-slow",
		Kind:     models.KindShow,
		Stage:    registry.StageSondagem,
		Title:    "Slow Show",
		Position: models.AppendPosition,
	})
	if err != nil {
		t.Fatalf("Failed to seed entity: %v", err)
	}

	gated := &gatedRepo{
		EntityRepo: repo,
		tenant:     "tenant-slow",
		started:    make(chan struct{}),
		release:    make(chan struct{}),
	}
	a, err := New(config.Default(), WithPersister(gated), WithClientID("client-a"))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })

	type result struct {
		board *Board
		err   error
	}
	slow := make(chan result, 1)
	go func() {
		b, err := a.Board(context.Background(), "tenant-slow", models.KindShow)
		slow <- result{b, err}
	}()
	<-gated.started

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	b, err := a.Board(ctx, testTenant, models.KindShow)
	if err != nil {
		t.Fatalf("Board() for another tenant blocked or failed: %v", err)
	}
	applied, err := a.Apply(models.StageChange{
		TenantID: testTenant,
		Kind:     models.KindShow,
		EntityID: show.ID,
		Stage:    registry.StageProposta,
		Origin:   "client-b",
	})
	if err != nil || !applied {
		t.Fatalf("Apply() = %v, %v; want applied", applied, err)
	}
	if stage, _, _ := b.Store.Locate(show.ID); stage != registry.StageProposta {
		t.Errorf("stage = %s, want %s", stage, registry.StageProposta)
	}

	// Changes for the hydrating board are held until it is ready
	applied, err = a.Apply(models.StageChange{
		TenantID: "tenant-slow",
		Kind:     models.KindShow,
		EntityID: slowShow.ID,
		Stage:    registry.StageProposta,
		Origin:   "client-b",
	})
	if err != nil || applied {
		t.Fatalf("Apply() during hydration = %v, %v; want queued", applied, err)
	}
	if got := len(a.Boards()); got != 1 {
		t.Errorf("Boards() = %d boards, want only the hydrated one", got)
	}

	close(gated.release)

	var res result
	select {
	case res = <-slow:
	case <-ctx.Done():
		t.Fatal("slow board never finished loading")
	}
	if res.err != nil {
		t.Fatalf("Board() for slow tenant failed: %v", res.err)
	}
	if stage, _, _ := res.board.Store.Locate(slowShow.ID); stage != registry.StageProposta {
		t.Errorf("queued change not merged: stage = %s, want %s", stage, registry.StageProposta)
	}

	again, err := a.Board(ctx, "tenant-slow", models.KindShow)
	if err != nil || again != res.board {
		t.Errorf("Board() after load = %p, %v; want the cached board", again, err)
	}
}

func TestBoardLoadFailureIsNotCached(t *testing.T) {
	repo := setupTestRepo(t)
	seed(t, repo, registry.StageSondagem, "Show A")

	gated := &gatedRepo{
		EntityRepo: repo,
		tenant:     testTenant,
		started:    make(chan struct{}),
		release:    make(chan struct{}),
	}
	a, err := New(config.Default(), WithPersister(gated), WithClientID("client-a"))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := a.Board(ctx, testTenant, models.KindShow); !errors.Is(err, context.Canceled) {
		t.Fatalf("Board() error = %v, want context.Canceled", err)
	}

	close(gated.release)
	gated.started = make(chan struct{})
	b, err := a.Board(context.Background(), testTenant, models.KindShow)
	if err != nil {
		t.Fatalf("Board() retry failed: %v", err)
	}
	if b.Store.Len() != 1 {
		t.Errorf("Store.Len() = %d, want 1", b.Store.Len())
	}
}

func TestRunFeedMergesDeletion(t *testing.T) {
	repo := setupTestRepo(t)
	gone := seed(t, repo, registry.StageSondagem, "Show A")
	other := seed(t, repo, registry.StageSondagem, "Show B")

	a := newTestApp(t, config.Default(), repo)
	b, err := a.Board(context.Background(), testTenant, models.KindShow)
	if err != nil {
		t.Fatalf("Board() failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	changes := make(chan models.StageChange, 2)
	changes <- models.StageChange{TenantID: testTenant, Kind: models.KindShow, EntityID: gone.ID, Stage: "ARCHIVED"}
	changes <- models.StageChange{TenantID: testTenant, Kind: models.KindShow, EntityID: gone.ID, Stage: registry.StageSondagem, Deleted: true}
	close(changes)

	if err := a.RunFeed(ctx, changes); err != nil {
		t.Fatalf("RunFeed() failed: %v", err)
	}
	if _, _, found := b.Store.Locate(gone.ID); found {
		t.Error("deleted entity is still on the board")
	}
	if _, pos, _ := b.Store.Locate(other.ID); pos != 0 {
		t.Errorf("position = %d, want 0 after repack", pos)
	}
}
