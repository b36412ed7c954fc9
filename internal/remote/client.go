// Package remote stores boards in Redis so several esteira processes can
// share them, and streams stage changes over Redis Pub/Sub.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/managershow/esteira/internal/models"
)

// maxTxRetries bounds optimistic-lock retries of a move
const maxTxRetries = 5

// ErrConflict is returned when a move kept losing the optimistic lock
var ErrConflict = errors.New("concurrent update, retries exhausted")

// Client provides tenant-scoped board storage on Redis.
// The client is safe for concurrent use.
type Client struct {
	rdb *redis.Client
	now func() time.Time
}

// NewClient creates a client for the given Redis options
func NewClient(opts *redis.Options) (*Client, error) {
	if opts == nil || opts.Addr == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}
	return &Client{
		rdb: redis.NewClient(opts),
		now: time.Now,
	}, nil
}

// Close closes the Redis connection. Implements io.Closer.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// CreateEntity stores an entity at its position in its stage and publishes
// the full record. An empty ID gets a new UUID.
func (c *Client) CreateEntity(ctx context.Context, entity *models.Entity) (*models.Entity, error) {
	if err := entity.Validate(); err != nil {
		return nil, err
	}

	created := entity.Clone()
	if created.ID == "" {
		created.ID = uuid.NewString()
	}
	created.UpdatedAt = c.now()

	entityKey := EntityKey(created.TenantID, created.ID)
	stageKey := StageKey(created.TenantID, created.Kind, created.Stage)

	err := c.withRetry(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, entityKey).Result()
		if err != nil {
			return err
		}
		if exists > 0 {
			return fmt.Errorf("%w: entity %s already exists", models.ErrInvalidEntity, created.ID)
		}

		ids, err := tx.LRange(ctx, stageKey, 0, -1).Result()
		if err != nil {
			return err
		}
		created.Position = clampPosition(created.Position, len(ids))

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, entityKey, entityToHash(created))
			insertAt(ctx, pipe, stageKey, ids, created.Position, created.ID)
			pipe.SAdd(ctx, StagesKey(created.TenantID, created.Kind), string(created.Stage))
			return nil
		})
		return err
	}, entityKey, stageKey)
	if err != nil {
		return nil, err
	}

	c.publish(ctx, models.StageChange{
		TenantID: created.TenantID,
		Kind:     created.Kind,
		EntityID: created.ID,
		Stage:    created.Stage,
		Position: created.Position,
		Entity:   created.Clone(),
	})
	return created, nil
}

// GetEntity retrieves an entity with its current position
func (c *Client) GetEntity(ctx context.Context, tenantID string, kind models.Kind, id string) (*models.Entity, error) {
	hash, err := c.rdb.HGetAll(ctx, EntityKey(tenantID, id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read entity from Redis: %w", err)
	}
	if len(hash) == 0 {
		return nil, fmt.Errorf("%w: %s", models.ErrEntityNotFound, id)
	}

	e, err := hashToEntity(hash)
	if err != nil {
		return nil, err
	}
	if e.Kind != kind {
		return nil, fmt.Errorf("%w: %s", models.ErrEntityNotFound, id)
	}

	ids, err := c.rdb.LRange(ctx, StageKey(tenantID, kind, e.Stage), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	e.Position = indexOf(ids, id)
	return e, nil
}

// LoadEntities returns every entity on a tenant's board
func (c *Client) LoadEntities(ctx context.Context, tenantID string, kind models.Kind) ([]*models.Entity, error) {
	stages, err := c.rdb.SMembers(ctx, StagesKey(tenantID, kind)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list stages: %w", err)
	}

	var entities []*models.Entity
	for _, stage := range stages {
		ids, err := c.rdb.LRange(ctx, StageKey(tenantID, kind, models.Stage(stage)), 0, -1).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read stage %s: %w", stage, err)
		}

		pipe := c.rdb.Pipeline()
		cmds := make([]*redis.MapStringStringCmd, len(ids))
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, EntityKey(tenantID, id))
		}
		if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("failed to read entities: %w", err)
		}

		pos := 0
		for i, cmd := range cmds {
			hash := cmd.Val()
			if len(hash) == 0 {
				slog.Warn("stage list references missing entity", "tenant", tenantID, "entity_id", ids[i])
				continue
			}
			e, err := hashToEntity(hash)
			if err != nil {
				return nil, err
			}
			e.Position = pos
			pos++
			entities = append(entities, e)
		}
	}
	return entities, nil
}

// UpdateEntityStage moves an entity under an optimistic lock on the entity
// and both stage lists, then publishes the change
func (c *Client) UpdateEntityStage(ctx context.Context, change models.StageChange) error {
	entityKey := EntityKey(change.TenantID, change.EntityID)

	// The source stage is only known after reading the entity, so the
	// watched key set is rebuilt when it turns out to differ
	from, err := c.rdb.HGet(ctx, entityKey, "stage").Result()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %s", models.ErrEntityNotFound, change.EntityID)
	}
	if err != nil {
		return fmt.Errorf("failed to read entity: %w", err)
	}

	for attempt := 0; attempt < maxTxRetries; attempt++ {
		srcKey := StageKey(change.TenantID, change.Kind, models.Stage(from))
		dstKey := StageKey(change.TenantID, change.Kind, change.Stage)

		var moved bool
		err = c.rdb.Watch(ctx, func(tx *redis.Tx) error {
			current, err := tx.HGet(ctx, entityKey, "stage").Result()
			if errors.Is(err, redis.Nil) {
				return fmt.Errorf("%w: %s", models.ErrEntityNotFound, change.EntityID)
			}
			if err != nil {
				return err
			}
			if current != from {
				// Moved since we read it; retry with the new source
				from = current
				return nil
			}

			ids, err := tx.LRange(ctx, dstKey, 0, -1).Result()
			if err != nil {
				return err
			}
			ids = without(ids, change.EntityID)
			change.Position = clampPosition(change.Position, len(ids))

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.LRem(ctx, srcKey, 0, change.EntityID)
				insertAt(ctx, pipe, dstKey, ids, change.Position, change.EntityID)
				pipe.HSet(ctx, entityKey,
					"stage", string(change.Stage),
					"updated_at", c.now().UTC().Format(time.RFC3339Nano))
				pipe.SAdd(ctx, StagesKey(change.TenantID, change.Kind), string(change.Stage))
				return nil
			})
			moved = err == nil
			return err
		}, entityKey, srcKey, dstKey)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to move entity: %w", err)
		}
		if moved {
			c.publish(ctx, change)
			return nil
		}
	}
	return ErrConflict
}

// DeleteEntity removes an entity from its stage and deletes its record
func (c *Client) DeleteEntity(ctx context.Context, tenantID string, kind models.Kind, id string) error {
	entityKey := EntityKey(tenantID, id)
	stage, err := c.rdb.HGet(ctx, entityKey, "stage").Result()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %s", models.ErrEntityNotFound, id)
	}
	if err != nil {
		return err
	}

	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, StageKey(tenantID, kind, models.Stage(stage)), 0, id)
		pipe.Del(ctx, entityKey)
		return nil
	})
	if err != nil {
		return err
	}

	c.publish(ctx, models.StageChange{
		TenantID: tenantID,
		Kind:     kind,
		EntityID: id,
		Stage:    models.Stage(stage),
		Deleted:  true,
	})
	return nil
}

// withRetry runs fn under WATCH on keys, retrying when the lock is lost
func (c *Client) withRetry(ctx context.Context, fn func(*redis.Tx) error, keys ...string) error {
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err := c.rdb.Watch(ctx, fn, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return ErrConflict
}

// publish announces a change; failures are logged, the write already landed
func (c *Client) publish(ctx context.Context, change models.StageChange) {
	payload, err := json.Marshal(change)
	if err != nil {
		slog.Error("failed to marshal stage change", "entity_id", change.EntityID, "error", err)
		return
	}
	if err := c.rdb.Publish(ctx, StageEventsChannel(change.TenantID, change.Kind), payload).Err(); err != nil {
		slog.Warn("failed to publish stage change", "entity_id", change.EntityID, "error", err)
	}
}

// Subscription is an active Pub/Sub subscription to a board's changes.
// Caller must call Close() when done to clean up resources.
type Subscription struct {
	events <-chan models.StageChange
	errors <-chan error
	cancel func()
	once   sync.Once
	done   <-chan struct{}
}

// Events returns the channel of stage changes. It is closed when the
// subscription is closed or its context is cancelled.
func (s *Subscription) Events() <-chan models.StageChange {
	return s.events
}

// Errors returns non-fatal decode errors; the offending message is skipped
func (s *Subscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription and waits for its goroutine. Implements io.Closer.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	<-s.done
	return nil
}

// Subscribe listens to a board's stage changes. It returns once Redis has
// confirmed the subscription, so no change published afterwards is missed.
func (c *Client) Subscribe(ctx context.Context, tenantID string, kind models.Kind) (*Subscription, error) {
	return c.subscribe(ctx, c.rdb.Subscribe(ctx, StageEventsChannel(tenantID, kind)))
}

// SubscribeAll listens to the stage changes of every tenant and board
func (c *Client) SubscribeAll(ctx context.Context) (*Subscription, error) {
	return c.subscribe(ctx, c.rdb.PSubscribe(ctx, AllStageEventsPattern))
}

func (c *Client) subscribe(ctx context.Context, pubsub *redis.PubSub) (*Subscription, error) {
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	eventsChan := make(chan models.StageChange, 10)
	errorsChan := make(chan error, 10)
	done := make(chan struct{})
	subCtx, cancel := context.WithCancel(ctx)

	go func() {
		defer close(done)
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var change models.StageChange
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal stage change on %s: %w", msg.Channel, err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- change:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancel,
		done:   done,
	}, nil
}

// insertAt queues the commands placing id at pos in a list whose current
// content (without id) is ids
func insertAt(ctx context.Context, pipe redis.Pipeliner, key string, ids []string, pos int, id string) {
	if pos >= len(ids) {
		pipe.RPush(ctx, key, id)
		return
	}
	pipe.LInsertBefore(ctx, key, ids[pos], id)
}

func clampPosition(pos, n int) int {
	if pos < 0 {
		return 0
	}
	if pos > n {
		return n
	}
	return pos
}

func without(ids []string, id string) []string {
	out := ids[:0:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}
