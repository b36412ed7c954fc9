package board

import (
	"context"
	"errors"
	"log/slog"

	"github.com/managershow/esteira/internal/models"
)

// Feed merges externally-initiated stage changes into a store. Changes for
// another tenant or board kind, and echoes of this client's own changes, are
// dropped.
type Feed struct {
	store    *Store
	tenantID string
	origin   string
}

// NewFeed creates a feed for one tenant's board. origin is the local client
// ID used to suppress echoes.
func NewFeed(store *Store, tenantID, origin string) *Feed {
	return &Feed{store: store, tenantID: tenantID, origin: origin}
}

// Apply merges one change and reports whether the board changed
func (f *Feed) Apply(change models.StageChange) (bool, error) {
	if change.TenantID != f.tenantID || change.Kind != f.store.Registry().Kind() {
		return false, nil
	}
	if f.origin != "" && change.Origin == f.origin {
		return false, nil
	}
	return f.store.ApplyExternal(change)
}

// Applier merges one external change. Feed applies to a single board; the
// application container routes to whichever board the change belongs to.
type Applier interface {
	Apply(change models.StageChange) (bool, error)
}

// Run applies changes until the channel closes or ctx is done
func (f *Feed) Run(ctx context.Context, changes <-chan models.StageChange) error {
	return RunFeed(ctx, f, changes)
}

// RunFeed drains changes into dst until the channel closes or ctx is done.
// Changes that fail to merge are logged and skipped; they never stop the
// feed.
func RunFeed(ctx context.Context, dst Applier, changes <-chan models.StageChange) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case change, ok := <-changes:
			if !ok {
				return nil
			}
			applied, err := dst.Apply(change)
			switch {
			case errors.Is(err, models.ErrUnknownStage):
				slog.Warn("external change references undeclared stage",
					"tenant", change.TenantID,
					"entity_id", change.EntityID,
					"stage", change.Stage)
			case err != nil:
				slog.Warn("failed to merge external change",
					"tenant", change.TenantID,
					"entity_id", change.EntityID,
					"stage", change.Stage,
					"error", err)
			case applied:
				slog.Debug("merged external change",
					"tenant", change.TenantID,
					"entity_id", change.EntityID,
					"stage", change.Stage,
					"deleted", change.Deleted)
			}
		}
	}
}
