package remote

import (
	"fmt"

	"github.com/managershow/esteira/internal/models"
)

// Redis key pattern helpers
//
// Every key and channel is namespaced by tenant so several tenants can share
// one Redis server.
//
// Key pattern: esteira:{tenant}:entity:{id}
// Channel pattern: esteira:{tenant}:{kind}:stage_events

// EntityKey returns the hash holding one entity.
// Pattern: esteira:{tenant}:entity:{id}
func EntityKey(tenantID, entityID string) string {
	return fmt.Sprintf("esteira:%s:entity:%s", tenantID, entityID)
}

// StageKey returns the list of entity IDs in a stage, in board order.
// Pattern: esteira:{tenant}:{kind}:stage:{stage}
func StageKey(tenantID string, kind models.Kind, stage models.Stage) string {
	return fmt.Sprintf("esteira:%s:%s:stage:%s", tenantID, kind, stage)
}

// StagesKey returns the set of stages that hold entities on a board.
// Pattern: esteira:{tenant}:{kind}:stages
func StagesKey(tenantID string, kind models.Kind) string {
	return fmt.Sprintf("esteira:%s:%s:stages", tenantID, kind)
}

// StageEventsChannel returns the Pub/Sub channel for a board's changes.
// Pattern: esteira:{tenant}:{kind}:stage_events
func StageEventsChannel(tenantID string, kind models.Kind) string {
	return fmt.Sprintf("esteira:%s:%s:stage_events", tenantID, kind)
}

// AllStageEventsPattern matches the stage event channel of every board
const AllStageEventsPattern = "esteira:*:*:stage_events"
