package database

import (
	"context"
	"database/sql"
	"fmt"
)

// migrations are applied in order; each entry is one schema version
var migrations = [][]string{
	// 1: entities on tenant boards
	{`CREATE TABLE IF NOT EXISTS entities (
		id          TEXT PRIMARY KEY,
		tenant_id   TEXT NOT NULL,
		kind        TEXT NOT NULL,
		stage       TEXT NOT NULL,
		position    INTEGER NOT NULL,
		title       TEXT NOT NULL,
		counterpart TEXT NOT NULL DEFAULT '',
		city        TEXT NOT NULL DEFAULT '',
		date        TEXT,
		updated_at  TEXT NOT NULL
	)`,
		`CREATE INDEX IF NOT EXISTS idx_entities_board
		ON entities(tenant_id, kind, stage, position)`},
}

// runMigrations applies every migration newer than the stored user_version
func runMigrations(ctx context.Context, db *sql.DB) error {
	var current int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for i := current; i < len(migrations); i++ {
		err := withTx(ctx, db, func(tx *sql.Tx) error {
			for _, stmt := range migrations[i] {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return err
				}
			}
			_, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", i+1))
			return err
		})
		if err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	return nil
}
