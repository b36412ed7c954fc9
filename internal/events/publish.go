package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/managershow/esteira/internal/models"
)

const publishBaseDelay = 50 * time.Millisecond

// PublishWithRetry queues an event, retrying with exponential backoff while
// the client's queue is full. A nil client is a no-op.
// Live updates are best effort: callers log the error, they never fail the
// operation that produced the event.
func PublishWithRetry(ctx context.Context, client EventPublisher, event Event, maxRetries int) error {
	if client == nil {
		return nil
	}

	var lastErr error
	delay := publishBaseDelay
	for attempt := 1; attempt <= maxRetries; attempt++ {
		lastErr = client.SendEvent(event)
		if lastErr == nil {
			if attempt > 1 {
				slog.Debug("event published after retry",
					"attempt", attempt,
					"event_type", event.Type,
					"entity_id", event.EntityID)
			}
			return nil
		}
		if attempt == maxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	slog.Warn("event publish failed after all retries",
		"attempts", maxRetries,
		"event_type", event.Type,
		"tenant", event.TenantID,
		"entity_id", event.EntityID,
		"error", lastErr)
	return lastErr
}

// PublishStageChange announces a committed stage change
func PublishStageChange(ctx context.Context, client EventPublisher, change models.StageChange) error {
	return PublishWithRetry(ctx, client, NewStageChanged(change), 3)
}
