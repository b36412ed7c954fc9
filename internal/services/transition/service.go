// Package transition is the single authority for changing an entity's
// stage: it validates a proposed move, applies it optimistically to the
// board store, persists it, and rolls the board back when persistence fails.
package transition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/managershow/esteira/internal/board"
	"github.com/managershow/esteira/internal/models"
)

// DefaultCommitTimeout bounds a persistence request when the caller's
// context has no deadline
const DefaultCommitTimeout = 10 * time.Second

// Persister is the write side of the sync layer
type Persister interface {
	UpdateEntityStage(ctx context.Context, change models.StageChange) error
}

// Service defines stage-transition operations for one board
type Service interface {
	// AttemptMove validates and commits a move of entityID from fromStage to
	// toStage at targetIndex.
	AttemptMove(ctx context.Context, entityID string, fromStage, toStage models.Stage, targetIndex int) error

	// IsPending reports whether a commit for the entity is outstanding
	IsPending(entityID string) bool
}

// Config carries the per-board settings of a Service
type Config struct {
	TenantID string
	Origin   string        // client ID stamped on persisted changes
	Timeout  time.Duration // 0 means DefaultCommitTimeout
	Policy   Policy        // nil means DeclaredOnly
}

// service implements Service
type service struct {
	store     *board.Store
	persister Persister
	cfg       Config

	mu      sync.Mutex
	pending map[string]struct{}
}

// NewService creates a transition service for a board store
func NewService(store *board.Store, persister Persister, cfg Config) (Service, error) {
	if persister == nil {
		return nil, ErrNilPersister
	}
	if cfg.TenantID == "" {
		return nil, ErrInvalidTenantID
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultCommitTimeout
	}
	if cfg.Policy == nil {
		cfg.Policy = DeclaredOnly
	}

	return &service{
		store:     store,
		persister: persister,
		cfg:       cfg,
		pending:   make(map[string]struct{}),
	}, nil
}

// AttemptMove runs the validate / snapshot / optimistic apply / persist /
// rollback sequence. Errors:
//   - ErrUnknownStage when either stage is undeclared
//   - ErrSessionConflict when a commit for the entity is outstanding
//   - ErrEntityNotFound when the entity is not on the board
//   - ErrStaleState when the entity is not in fromStage
//   - ErrIllegalTransition when the policy rejects the move
//   - *TransitionFailedError when persistence failed and the board was rolled back
func (s *service) AttemptMove(ctx context.Context, entityID string, fromStage, toStage models.Stage, targetIndex int) error {
	if entityID == "" || len(entityID) > models.MaxEntityIDLength {
		return ErrInvalidEntityID
	}

	// 1. Both stages must be declared
	if err := s.store.Registry().Validate(fromStage, toStage); err != nil {
		return err
	}

	// Commits on one entity are strictly sequential
	if !s.acquire(entityID) {
		return fmt.Errorf("%w: commit for %s still outstanding", models.ErrSessionConflict, entityID)
	}
	defer s.release(entityID)

	// 2. The entity must still be where the caller saw it
	current, _, ok := s.store.Locate(entityID)
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrEntityNotFound, entityID)
	}
	if current != fromStage {
		return fmt.Errorf("%w: %s is in %s, not %s", models.ErrStaleState, entityID, current, fromStage)
	}

	if err := s.cfg.Policy.Check(fromStage, toStage); err != nil {
		return err
	}

	// 3. Optimistic apply, with the rollback snapshot taken under the same lock
	ev, snap, err := s.store.MoveWithSnapshot(entityID, fromStage, toStage, targetIndex)
	if err != nil {
		return err
	}
	if ev == nil {
		// Dropped back into its own slot
		return nil
	}

	// 4. Persist
	commitCtx, cancel := s.commitContext(ctx)
	defer cancel()

	err = s.persister.UpdateEntityStage(commitCtx, models.StageChange{
		TenantID: s.cfg.TenantID,
		Kind:     s.store.Registry().Kind(),
		EntityID: entityID,
		Stage:    toStage,
		Position: ev.Index,
		Origin:   s.cfg.Origin,
	})
	if err == nil {
		// 5. Optimistic state is now authoritative
		slog.Debug("stage transition committed",
			"tenant", s.cfg.TenantID,
			"entity_id", entityID,
			"from", fromStage,
			"to", toStage,
			"index", ev.Index)
		return nil
	}

	// 6. Roll back and report
	slog.Warn("stage transition failed, rolling back",
		"tenant", s.cfg.TenantID,
		"entity_id", entityID,
		"from", fromStage,
		"to", toStage,
		"error", err)
	s.rollback(snap, ev)

	return &models.TransitionFailedError{
		EntityID: entityID,
		From:     fromStage,
		To:       toStage,
		Err:      err,
	}
}

// rollback restores the snapshot when the optimistic apply is the only
// mutation between the snapshot and now. Otherwise only the failed entity is
// moved back, and only if it is still where the optimistic apply put it.
func (s *service) rollback(snap *board.Snapshot, ev *board.Event) {
	if snap != nil && ev.Version == snap.Version()+1 && s.store.RestoreIfUnchanged(snap, ev.Version) {
		slog.Info("board restored from snapshot", "entity_id", ev.EntityID)
		return
	}

	stage, index, ok := s.store.Locate(ev.EntityID)
	if !ok || stage != ev.To || index != ev.Index {
		slog.Info("entity changed externally during commit, keeping external state",
			"entity_id", ev.EntityID,
			"stage", stage)
		return
	}

	if err := s.store.MoveEntity(ev.EntityID, ev.To, ev.From, ev.FromIndex); err != nil && !errors.Is(err, models.ErrStaleState) {
		slog.Error("compensating move failed", "entity_id", ev.EntityID, "error", err)
		return
	}
	slog.Info("entity moved back to origin", "entity_id", ev.EntityID, "stage", ev.From)
}

// commitContext applies the commit timeout unless the caller set a deadline
func (s *service) commitContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.Timeout)
}

// IsPending reports whether a commit for the entity is outstanding
func (s *service) IsPending(entityID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[entityID]
	return ok
}

func (s *service) acquire(entityID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.pending[entityID]; busy {
		return false
	}
	s.pending[entityID] = struct{}{}
	return true
}

func (s *service) release(entityID string) {
	s.mu.Lock()
	delete(s.pending, entityID)
	s.mu.Unlock()
}
