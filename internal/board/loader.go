package board

import (
	"context"
	"fmt"

	"github.com/managershow/esteira/internal/models"
)

// Loader reads a tenant's board from the sync layer
type Loader interface {
	LoadEntities(ctx context.Context, tenantID string, kind models.Kind) ([]*models.Entity, error)
}

// Load hydrates the store from loader and returns how many entities were
// skipped because they reference undeclared stages
func (s *Store) Load(ctx context.Context, loader Loader, tenantID string) (int, error) {
	entities, err := loader.LoadEntities(ctx, tenantID, s.reg.Kind())
	if err != nil {
		return 0, fmt.Errorf("failed to load %s board for tenant %s: %w", s.reg.Kind(), tenantID, err)
	}
	return s.Hydrate(entities), nil
}
