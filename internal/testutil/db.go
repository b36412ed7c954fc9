package testutil

import (
	"context"
	"database/sql"
	"testing"

	"github.com/managershow/esteira/internal/database"
	"github.com/managershow/esteira/internal/models"
)

// TestTenant is the tenant every fixture belongs to unless stated otherwise
const TestTenant = "tenant-test"

// SetupTestDB creates an in-memory database with full schema
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// CreateTestEntity appends an entity to a stage and returns it
func CreateTestEntity(t *testing.T, db *sql.DB, kind models.Kind, stage models.Stage, title string) *models.Entity {
	t.Helper()
	e, err := database.NewEntityRepo(db, nil).CreateEntity(context.Background(), &models.Entity{
		TenantID: TestTenant,
		Kind:     kind,
		Stage:    stage,
		Title:    title,
		Position: models.AppendPosition,
	})
	if err != nil {
		t.Fatalf("Failed to create test entity: %v", err)
	}
	return e
}

// StageOf reads an entity's stage and position straight from the table
func StageOf(t *testing.T, db *sql.DB, id string) (models.Stage, int) {
	t.Helper()
	var (
		stage    string
		position int
	)
	err := db.QueryRowContext(context.Background(),
		"SELECT stage, position FROM entities WHERE id = ?", id).Scan(&stage, &position)
	if err != nil {
		t.Fatalf("Failed to read entity %s: %v", id, err)
	}
	return models.Stage(stage), position
}
