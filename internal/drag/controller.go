// Package drag implements the pointer-gesture state machine that turns a
// pick-up, hover and drop into a single transition request.
package drag

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/managershow/esteira/internal/models"
)

// Board is the read side of the board store used by the controller
type Board interface {
	Locate(entityID string) (models.Stage, int, bool)
}

// StageSet reports whether a stage is a declared column
type StageSet interface {
	IsDeclared(stage models.Stage) bool
}

// Committer hands a finished gesture to the transition service
type Committer interface {
	AttemptMove(ctx context.Context, entityID string, fromStage, toStage models.Stage, targetIndex int) error
	IsPending(entityID string) bool
}

// Controller drives one drag gesture at a time:
// IDLE -> DRAGGING -> (DROPPING | CANCELED) -> IDLE.
// It never mutates the board itself.
type Controller struct {
	board     Board
	stages    StageSet
	committer Committer
	now       func() time.Time
	onState   func(models.DragState)

	mu      sync.Mutex
	state   models.DragState
	session *models.DragSession
}

// Option configures a Controller
type Option func(*Controller)

// WithClock overrides the time source used for StartedAt
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// WithStateListener registers a callback invoked on every state change.
// It runs while the controller lock is held and must not call back into it.
func WithStateListener(fn func(models.DragState)) Option {
	return func(c *Controller) {
		c.onState = fn
	}
}

// NewController creates an idle controller
func NewController(board Board, stages StageSet, committer Committer, opts ...Option) *Controller {
	c := &Controller{
		board:     board,
		stages:    stages,
		committer: committer,
		now:       time.Now,
		state:     models.DragIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current lifecycle state
func (c *Controller) State() models.DragState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns a copy of the active session, or nil when idle
func (c *Controller) Session() *models.DragSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	cp := *c.session
	if cp.HoverStage != nil {
		hover := *cp.HoverStage
		cp.HoverStage = &hover
	}
	return &cp
}

// Begin picks up an entity. Fails with ErrSessionConflict when a session is
// already active or a commit for the entity is still outstanding.
func (c *Controller) Begin(entityID string) (*models.DragSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != models.DragIdle {
		return nil, fmt.Errorf("%w: %s is being dragged", models.ErrSessionConflict, c.session.EntityID)
	}
	if c.committer.IsPending(entityID) {
		return nil, fmt.Errorf("%w: commit for %s still outstanding", models.ErrSessionConflict, entityID)
	}

	origin, _, ok := c.board.Locate(entityID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrEntityNotFound, entityID)
	}

	c.session = &models.DragSession{
		ID:          uuid.NewString(),
		EntityID:    entityID,
		OriginStage: origin,
		StartedAt:   c.now(),
	}
	c.setState(models.DragDragging)

	slog.Debug("drag started", "session_id", c.session.ID, "entity_id", entityID, "from", origin)
	cp := *c.session
	return &cp, nil
}

// Hover records the column under the pointer. Undeclared stages are ignored.
func (c *Controller) Hover(stage models.Stage) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != models.DragDragging {
		return models.ErrNoActiveSession
	}
	if !c.stages.IsDeclared(stage) {
		return nil
	}
	if c.session.HoverStage != nil && *c.session.HoverStage == stage {
		return nil
	}
	c.session.HoverStage = &stage
	return nil
}

// Drop hands the gesture to the committer and returns to IDLE whatever the
// outcome. The committer's error is returned unchanged.
func (c *Controller) Drop(ctx context.Context, targetIndex int) error {
	c.mu.Lock()
	if c.state != models.DragDragging {
		c.mu.Unlock()
		return models.ErrNoActiveSession
	}
	session := *c.session
	c.setState(models.DragDropping)
	c.mu.Unlock()

	err := c.committer.AttemptMove(ctx, session.EntityID, session.OriginStage, session.TargetStage(), targetIndex)

	c.mu.Lock()
	c.session = nil
	c.setState(models.DragIdle)
	c.mu.Unlock()

	if err != nil {
		slog.Debug("drop rejected", "session_id", session.ID, "entity_id", session.EntityID, "error", err)
	}
	return err
}

// Cancel discards the active session without touching the board
func (c *Controller) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != models.DragDragging {
		return models.ErrNoActiveSession
	}
	c.setState(models.DragCanceled)
	c.session = nil
	c.setState(models.DragIdle)
	return nil
}

// setState updates the state; the caller holds mu
func (c *Controller) setState(s models.DragState) {
	c.state = s
	if c.onState != nil {
		c.onState(s)
	}
}
