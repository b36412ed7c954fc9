package database

import (
	"context"

	"github.com/managershow/esteira/internal/models"
)

// DataStore is the persistence contract of a board backend. Both the
// embedded database and the shared Redis store implement it.
type DataStore interface {
	LoadEntities(ctx context.Context, tenantID string, kind models.Kind) ([]*models.Entity, error)
	UpdateEntityStage(ctx context.Context, change models.StageChange) error
	CreateEntity(ctx context.Context, entity *models.Entity) (*models.Entity, error)
	GetEntity(ctx context.Context, tenantID string, kind models.Kind, id string) (*models.Entity, error)
	DeleteEntity(ctx context.Context, tenantID string, kind models.Kind, id string) error
}

// Compile-time verification that *EntityRepo implements DataStore
var _ DataStore = (*EntityRepo)(nil)
