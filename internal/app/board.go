package app

import (
	"context"

	"github.com/managershow/esteira/internal/board"
	"github.com/managershow/esteira/internal/database"
	"github.com/managershow/esteira/internal/drag"
	"github.com/managershow/esteira/internal/models"
	"github.com/managershow/esteira/internal/registry"
	"github.com/managershow/esteira/internal/services/transition"
)

// Board bundles everything one tenant's board needs
type Board struct {
	TenantID  string
	Registry  *registry.Registry
	Store     *board.Store
	Committer transition.Service

	loader board.Loader
	feed   *board.Feed
}

func newBoard(tenantID string, reg *registry.Registry, store database.DataStore, cfg transition.Config) (*Board, error) {
	s := board.NewStore(reg)
	committer, err := transition.NewService(s, store, cfg)
	if err != nil {
		return nil, err
	}
	return &Board{
		TenantID:  tenantID,
		Registry:  reg,
		Store:     s,
		Committer: committer,
		loader:    store,
		feed:      board.NewFeed(s, tenantID, cfg.Origin),
	}, nil
}

// Hydrate reloads the board from the persistence backend
func (b *Board) Hydrate(ctx context.Context) error {
	_, err := b.Store.Load(ctx, b.loader, b.TenantID)
	return err
}

// NewController returns a drag controller bound to this board
func (b *Board) NewController(opts ...drag.Option) *drag.Controller {
	return drag.NewController(b.Store, b.Registry, b.Committer, opts...)
}

// Apply merges an external change, dropping echoes of this process
func (b *Board) Apply(change models.StageChange) (bool, error) {
	return b.feed.Apply(change)
}
