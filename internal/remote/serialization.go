package remote

import (
	"fmt"
	"time"

	"github.com/managershow/esteira/internal/models"
)

// entityToHash flattens an entity into Redis hash fields. Position is not
// stored; it is the entity's index in its stage list.
func entityToHash(e *models.Entity) map[string]any {
	hash := map[string]any{
		"id":          e.ID,
		"tenant_id":   e.TenantID,
		"kind":        string(e.Kind),
		"stage":       string(e.Stage),
		"title":       e.Title,
		"counterpart": e.Counterpart,
		"city":        e.City,
		"updated_at":  e.UpdatedAt.UTC().Format(time.RFC3339Nano),
		"date":        "",
	}
	if !e.Date.IsZero() {
		hash["date"] = e.Date.UTC().Format(time.RFC3339Nano)
	}
	return hash
}

// hashToEntity rebuilds an entity from HGETALL output
func hashToEntity(hash map[string]string) (*models.Entity, error) {
	e := &models.Entity{
		ID:          hash["id"],
		TenantID:    hash["tenant_id"],
		Kind:        models.Kind(hash["kind"]),
		Stage:       models.Stage(hash["stage"]),
		Title:       hash["title"],
		Counterpart: hash["counterpart"],
		City:        hash["city"],
	}
	if e.ID == "" {
		return nil, fmt.Errorf("entity hash has no id")
	}

	var err error
	if e.Date, err = parseTime(hash["date"]); err != nil {
		return nil, fmt.Errorf("entity %s: bad date: %w", e.ID, err)
	}
	if e.UpdatedAt, err = parseTime(hash["updated_at"]); err != nil {
		return nil, fmt.Errorf("entity %s: bad updated_at: %w", e.ID, err)
	}
	return e, nil
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
