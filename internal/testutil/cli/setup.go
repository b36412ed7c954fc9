package cli

import (
	"database/sql"
	"testing"

	"github.com/managershow/esteira/internal/app"
	"github.com/managershow/esteira/internal/config"
	"github.com/managershow/esteira/internal/database"
	"github.com/managershow/esteira/internal/models"
	"github.com/managershow/esteira/internal/testutil"
)

// SetupCLITest creates an in-memory DB and returns both the DB and App instance
// This function is only for CLI tests and is isolated in a separate package
// to avoid import cycles when service tests import testutil
func SetupCLITest(t *testing.T) (*sql.DB, *app.App) {
	t.Helper()
	return SetupCLITestWithConfig(t, config.Default())
}

// SetupCLITestWithConfig is SetupCLITest with an explicit config
func SetupCLITestWithConfig(t *testing.T, cfg *config.Config) (*sql.DB, *app.App) {
	t.Helper()
	db := testutil.SetupTestDB(t)

	// Note: EventPublisher is nil - event publishing is tested elsewhere
	appInstance, err := app.New(cfg, app.WithPersister(database.NewEntityRepo(db, nil)))
	if err != nil {
		t.Fatalf("Failed to create app: %v", err)
	}
	t.Cleanup(func() { _ = appInstance.Close() })

	return db, appInstance
}

// CreateTestShow wraps testutil.CreateTestEntity for the shows board
func CreateTestShow(t *testing.T, db *sql.DB, stage models.Stage, title string) string {
	t.Helper()
	return testutil.CreateTestEntity(t, db, models.KindShow, stage, title).ID
}

// CreateTestLead wraps testutil.CreateTestEntity for the leads board
func CreateTestLead(t *testing.T, db *sql.DB, stage models.Stage, title string) string {
	t.Helper()
	return testutil.CreateTestEntity(t, db, models.KindLead, stage, title).ID
}
