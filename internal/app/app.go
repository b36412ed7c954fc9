// Package app is the application container: it owns the persistence
// backend and creates one live board per tenant and board kind.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/managershow/esteira/internal/board"
	"github.com/managershow/esteira/internal/config"
	"github.com/managershow/esteira/internal/database"
	"github.com/managershow/esteira/internal/events"
	"github.com/managershow/esteira/internal/models"
	"github.com/managershow/esteira/internal/registry"
	"github.com/managershow/esteira/internal/services/transition"
)

var ErrNoPersister = errors.New("app requires a persister")

type boardKey struct {
	tenantID string
	kind     models.Kind
}

// boardEntry is a cached board. ready closes once hydration finished; until
// then board is nil and external changes queue in pending.
type boardEntry struct {
	ready   chan struct{}
	board   *Board
	err     error
	pending []models.StageChange
}

func (e *boardEntry) wait(ctx context.Context) (*Board, error) {
	select {
	case <-e.ready:
		return e.board, e.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// App holds all application services and provides dependency injection.
// Boards are created on first use and live until Close.
type App struct {
	cfg         *config.Config
	store       database.DataStore
	eventClient events.EventPublisher
	logger      *slog.Logger
	clientID    string

	mu     sync.Mutex
	boards map[boardKey]*boardEntry
}

// New creates the application container
func New(cfg *config.Config, opts ...Option) (*App, error) {
	options := &appConfig{}
	for _, opt := range opts {
		opt(options)
	}
	if options.store == nil {
		return nil, ErrNoPersister
	}
	if cfg == nil {
		cfg = config.Default()
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}
	if options.clientID == "" {
		options.clientID = uuid.NewString()
	}

	return &App{
		cfg:         cfg,
		store:       options.store,
		eventClient: options.eventClient,
		logger:      options.logger,
		clientID:    options.clientID,
		boards:      make(map[boardKey]*boardEntry),
	}, nil
}

// Config returns the configuration the app was built with
func (a *App) Config() *config.Config {
	return a.cfg
}

// Store returns the persistence backend
func (a *App) Store() database.DataStore {
	return a.store
}

// ClientID is the origin stamped on changes made by this process
func (a *App) ClientID() string {
	return a.clientID
}

// EventPublisher returns the daemon client, or nil when running without one
func (a *App) EventPublisher() events.EventPublisher {
	return a.eventClient
}

// Board returns the live board for a tenant, creating and hydrating it on
// first use. Concurrent callers for the same board share one hydration;
// loading one board never blocks access to another.
func (a *App) Board(ctx context.Context, tenantID string, kind models.Kind) (*Board, error) {
	if tenantID == "" {
		return nil, transition.ErrInvalidTenantID
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown board kind %q", kind)
	}

	key := boardKey{tenantID: tenantID, kind: kind}

	a.mu.Lock()
	if e, ok := a.boards[key]; ok {
		a.mu.Unlock()
		return e.wait(ctx)
	}
	e := &boardEntry{ready: make(chan struct{})}
	a.boards[key] = e
	a.mu.Unlock()

	b, err := a.loadBoard(ctx, tenantID, kind)

	a.mu.Lock()
	if err != nil {
		// Failed loads are not cached; the next call retries
		delete(a.boards, key)
		e.err = err
	} else {
		for _, change := range e.pending {
			if _, err := b.Apply(change); err != nil {
				a.logger.Warn("failed to merge queued change",
					"tenant", change.TenantID,
					"entity_id", change.EntityID,
					"error", err)
			}
		}
		e.board = b
	}
	e.pending = nil
	a.mu.Unlock()
	close(e.ready)

	if err != nil {
		return nil, err
	}
	a.logger.Info("board loaded", "tenant", tenantID, "kind", kind, "entities", b.Store.Len())
	return b, nil
}

// loadBoard builds a board and hydrates it from the backend
func (a *App) loadBoard(ctx context.Context, tenantID string, kind models.Kind) (*Board, error) {
	reg, err := a.cfg.Registry(kind)
	if err != nil {
		return nil, err
	}
	b, err := newBoard(tenantID, reg, a.store, transition.Config{
		TenantID: tenantID,
		Origin:   a.clientID,
		Timeout:  a.cfg.CommitTimeout,
		Policy:   a.policyFor(reg),
	})
	if err != nil {
		return nil, err
	}
	if err := b.Hydrate(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

// Boards returns the loaded boards ordered by tenant then kind
func (a *App) Boards() []*Board {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]*Board, 0, len(a.boards))
	for _, e := range a.boards {
		if e.board != nil {
			out = append(out, e.board)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TenantID != out[j].TenantID {
			return out[i].TenantID < out[j].TenantID
		}
		return out[i].Registry.Kind() < out[j].Registry.Kind()
	})
	return out
}

// Apply routes an external change to its board. Changes for boards that
// are not loaded are ignored; they are picked up when the board hydrates.
// Changes for a board that is still hydrating are merged once it is ready.
func (a *App) Apply(change models.StageChange) (bool, error) {
	a.mu.Lock()
	e, ok := a.boards[boardKey{tenantID: change.TenantID, kind: change.Kind}]
	if !ok {
		a.mu.Unlock()
		return false, nil
	}
	if e.board == nil {
		e.pending = append(e.pending, change)
		a.mu.Unlock()
		return false, nil
	}
	b := e.board
	a.mu.Unlock()
	return b.Apply(change)
}

// RunFeed applies external changes to the loaded boards until the channel
// closes or ctx is done
func (a *App) RunFeed(ctx context.Context, changes <-chan models.StageChange) error {
	return board.RunFeed(ctx, a, changes)
}

// Close performs cleanup of application resources
func (a *App) Close() error {
	if a.eventClient != nil {
		return a.eventClient.Close()
	}
	return nil
}

// policyFor builds the configured transition policy for a pipeline
func (a *App) policyFor(reg *registry.Registry) transition.Policy {
	var policies []transition.Policy
	if a.cfg.Policy.LockTerminalStages {
		policies = append(policies, transition.TerminalLock(reg))
	}
	if len(a.cfg.Policy.Transitions) > 0 {
		policies = append(policies, transition.Table(a.cfg.Policy.Transitions))
	}
	if len(policies) == 0 {
		return transition.DeclaredOnly
	}
	return transition.Chain(policies...)
}
