package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/managershow/esteira/internal/events"
	"github.com/managershow/esteira/internal/models"
)

const entityColumns = `id, tenant_id, kind, stage, position, title, counterpart, city, date, updated_at`

// EntityRepo handles all entity-related database operations.
type EntityRepo struct {
	db        *sql.DB
	publisher events.EventPublisher
	now       func() time.Time
}

// NewEntityRepo creates a repository over db. publisher may be nil, in
// which case committed changes are not announced.
func NewEntityRepo(db *sql.DB, publisher events.EventPublisher) *EntityRepo {
	return &EntityRepo{db: db, publisher: publisher, now: time.Now}
}

// LoadEntities returns every entity of a tenant's board, ordered by stage
// and position
func (r *EntityRepo) LoadEntities(ctx context.Context, tenantID string, kind models.Kind) ([]*models.Entity, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+entityColumns+`
		 FROM entities
		 WHERE tenant_id = ? AND kind = ?
		 ORDER BY stage, position`,
		tenantID, string(kind))
	if err != nil {
		return nil, fmt.Errorf("querying entities: %w", err)
	}
	defer rows.Close()

	var entities []*models.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entities, nil
}

// GetEntity retrieves a single entity
func (r *EntityRepo) GetEntity(ctx context.Context, tenantID string, kind models.Kind, id string) (*models.Entity, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE id = ? AND tenant_id = ? AND kind = ?`,
		id, tenantID, string(kind))
	e, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", models.ErrEntityNotFound, id)
	}
	return e, err
}

// CreateEntity inserts an entity at the given position of its stage,
// shifting later entities down. An empty ID gets a new UUID; a position out
// of range appends.
func (r *EntityRepo) CreateEntity(ctx context.Context, entity *models.Entity) (*models.Entity, error) {
	if err := entity.Validate(); err != nil {
		return nil, err
	}

	created := entity.Clone()
	if created.ID == "" {
		created.ID = uuid.NewString()
	}
	created.UpdatedAt = r.now()

	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		count, err := stageCount(ctx, tx, created.TenantID, created.Kind, created.Stage, "")
		if err != nil {
			return err
		}
		created.Position = clampPosition(created.Position, count)

		if _, err := tx.ExecContext(ctx,
			`UPDATE entities SET position = position + 1
			 WHERE tenant_id = ? AND kind = ? AND stage = ? AND position >= ?`,
			created.TenantID, string(created.Kind), string(created.Stage), created.Position); err != nil {
			return fmt.Errorf("shifting stage: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO entities (`+entityColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			created.ID, created.TenantID, string(created.Kind), string(created.Stage), created.Position,
			created.Title, created.Counterpart, created.City, nullTime(created.Date), formatTime(created.UpdatedAt))
		if err != nil {
			return fmt.Errorf("inserting entity: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sendEvent(ctx, r.publisher, models.StageChange{
		TenantID: created.TenantID,
		Kind:     created.Kind,
		EntityID: created.ID,
		Stage:    created.Stage,
		Position: created.Position,
		Entity:   created.Clone(),
	})
	return created, nil
}

// UpdateEntityStage moves an entity to change.Stage at change.Position,
// closing the gap in the source stage and opening one in the target, all in
// one transaction. Fails with ErrEntityNotFound when the entity is unknown.
func (r *EntityRepo) UpdateEntityStage(ctx context.Context, change models.StageChange) error {
	if change.EntityID == "" {
		return fmt.Errorf("%w: empty entity ID", models.ErrEntityNotFound)
	}

	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var stage string
		var position int
		err := tx.QueryRowContext(ctx,
			`SELECT stage, position FROM entities WHERE id = ? AND tenant_id = ? AND kind = ?`,
			change.EntityID, change.TenantID, string(change.Kind)).Scan(&stage, &position)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", models.ErrEntityNotFound, change.EntityID)
		}
		if err != nil {
			return err
		}

		// Close the gap left in the source stage
		if _, err := tx.ExecContext(ctx,
			`UPDATE entities SET position = position - 1
			 WHERE tenant_id = ? AND kind = ? AND stage = ? AND position > ?`,
			change.TenantID, string(change.Kind), stage, position); err != nil {
			return fmt.Errorf("closing gap: %w", err)
		}

		count, err := stageCount(ctx, tx, change.TenantID, change.Kind, change.Stage, change.EntityID)
		if err != nil {
			return err
		}
		target := clampPosition(change.Position, count)

		if _, err := tx.ExecContext(ctx,
			`UPDATE entities SET position = position + 1
			 WHERE tenant_id = ? AND kind = ? AND stage = ? AND position >= ? AND id != ?`,
			change.TenantID, string(change.Kind), string(change.Stage), target, change.EntityID); err != nil {
			return fmt.Errorf("opening gap: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE entities SET stage = ?, position = ?, updated_at = ? WHERE id = ?`,
			string(change.Stage), target, formatTime(r.now()), change.EntityID); err != nil {
			return fmt.Errorf("updating entity: %w", err)
		}
		change.Position = target
		return nil
	})
	if err != nil {
		return err
	}

	sendEvent(ctx, r.publisher, change)
	return nil
}

// DeleteEntity removes an entity and closes the gap in its stage
func (r *EntityRepo) DeleteEntity(ctx context.Context, tenantID string, kind models.Kind, id string) error {
	var stage string
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var position int
		err := tx.QueryRowContext(ctx,
			`SELECT stage, position FROM entities WHERE id = ? AND tenant_id = ? AND kind = ?`,
			id, tenantID, string(kind)).Scan(&stage, &position)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", models.ErrEntityNotFound, id)
		}
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM entities WHERE id = ?`, id); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE entities SET position = position - 1
			 WHERE tenant_id = ? AND kind = ? AND stage = ? AND position > ?`,
			tenantID, string(kind), stage, position)
		return err
	})
	if err != nil {
		return err
	}

	sendEvent(ctx, r.publisher, models.StageChange{
		TenantID: tenantID,
		Kind:     kind,
		EntityID: id,
		Stage:    models.Stage(stage),
		Deleted:  true,
	})
	return nil
}

// stageCount counts the entities in a stage, ignoring excludeID
func stageCount(ctx context.Context, tx *sql.Tx, tenantID string, kind models.Kind, stage models.Stage, excludeID string) (int, error) {
	var count int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM entities WHERE tenant_id = ? AND kind = ? AND stage = ? AND id != ?`,
		tenantID, string(kind), string(stage), excludeID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting stage %s: %w", stage, err)
	}
	return count, nil
}

func clampPosition(pos, count int) int {
	if pos < 0 {
		return 0
	}
	if pos > count {
		return count
	}
	return pos
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntity(s scanner) (*models.Entity, error) {
	var (
		e               models.Entity
		kind, stage     string
		date, updatedAt sql.NullString
	)
	if err := s.Scan(&e.ID, &e.TenantID, &kind, &stage, &e.Position, &e.Title,
		&e.Counterpart, &e.City, &date, &updatedAt); err != nil {
		return nil, err
	}
	e.Kind = models.Kind(kind)
	e.Stage = models.Stage(stage)

	var err error
	if e.Date, err = parseNullTime(date); err != nil {
		return nil, fmt.Errorf("entity %s: bad date: %w", e.ID, err)
	}
	if e.UpdatedAt, err = parseNullTime(updatedAt); err != nil {
		return nil, fmt.Errorf("entity %s: bad updated_at: %w", e.ID, err)
	}
	return &e, nil
}
