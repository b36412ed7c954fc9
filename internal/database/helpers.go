package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/managershow/esteira/internal/events"
	"github.com/managershow/esteira/internal/models"
)

// withTx executes a function within a database transaction.
// It automatically handles begin, rollback on error, and commit on success.
func withTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			slog.Error("failed to rollback transaction", "error", err)
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// sendEvent announces a committed change if a publisher is configured.
// Errors are logged but not returned (fire-and-forget pattern).
func sendEvent(ctx context.Context, publisher events.EventPublisher, change models.StageChange) {
	if publisher == nil {
		return
	}
	if err := events.PublishStageChange(ctx, publisher, change); err != nil {
		slog.Warn("failed to publish stage change",
			"tenant", change.TenantID,
			"entity_id", change.EntityID,
			"error", err)
	}
}

// formatTime stores times as RFC 3339 text in UTC
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseNullTime converts a nullable RFC 3339 column to time.Time.
// Returns zero time if the value is not valid.
func parseNullTime(ns sql.NullString) (time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, ns.String)
}

func nullTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(t), Valid: true}
}
