package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"
)

// DefaultDebounce is the batching window used when none is configured
const DefaultDebounce = 100 * time.Millisecond

var (
	ErrNilClient    = errors.New("event client is nil")
	ErrNotConnected = errors.New("not connected to daemon")
	ErrQueueFull    = errors.New("event queue full")
	ErrClientClosed = errors.New("event client closed")
)

// Client represents a connection to the esteira daemon for exchanging live
// board updates. It handles event sending, receiving, batching, reconnection,
// and subscriptions.
type Client struct {
	socketPath string
	conn       net.Conn
	encoder    *json.Encoder
	decoder    *json.Decoder
	mu         sync.Mutex

	// Batching configuration
	eventQueue   chan Event
	debounce     time.Duration
	closed       bool
	batcherOnce  sync.Once
	batcherStart bool

	// Reconnection configuration
	maxRetries int
	baseDelay  time.Duration

	// Subscription state, replayed on reconnect
	currentTenant string

	// Event tracking
	lastSequence int64

	notify NotifyFunc

	// Context for graceful shutdown
	ctx    context.Context
	cancel context.CancelFunc

	batcherDone chan struct{}
}

// NewClient creates a new event client but does not connect.
// The socket path should be the full path to the Unix domain socket.
// A debounce of zero or less uses DefaultDebounce.
func NewClient(socketPath string, debounce time.Duration) (*Client, error) {
	if socketPath == "" {
		return nil, fmt.Errorf("socket path is required")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		socketPath:  socketPath,
		eventQueue:  make(chan Event, 100),
		debounce:    debounce,
		maxRetries:  5,
		baseDelay:   1 * time.Second,
		ctx:         ctx,
		cancel:      cancel,
		batcherDone: make(chan struct{}),
	}, nil
}

// SetNotifyFunc registers a callback for connection status messages
func (c *Client) SetNotifyFunc(fn NotifyFunc) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.notify = fn
	c.mu.Unlock()
}

func (c *Client) notifyf(level, format string, args ...any) {
	c.mu.Lock()
	fn := c.notify
	c.mu.Unlock()
	if fn != nil {
		fn(level, fmt.Sprintf(format, args...))
	}
}

// Connect establishes a connection to the daemon socket and (re)sends the
// current subscription.
func (c *Client) Connect(ctx context.Context) error {
	if c == nil {
		return ErrNilClient
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClientClosed
	}

	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return fmt.Errorf("failed to dial daemon socket: %w", err)
	}

	c.conn = conn
	c.encoder = json.NewEncoder(conn)
	c.decoder = json.NewDecoder(conn)
	// A restarted daemon numbers events from scratch
	c.lastSequence = 0

	msg := Message{
		Version: ProtocolVersion,
		Type:    "subscribe",
		Subscribe: &SubscribeMessage{
			TenantID: c.currentTenant,
		},
	}
	if err := c.encoder.Encode(msg); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			slog.Debug("error closing connection", "error", closeErr)
		}
		c.conn = nil
		return fmt.Errorf("failed to send subscription: %w", err)
	}

	c.batcherOnce.Do(func() {
		c.batcherStart = true
		go c.startBatcher()
	})

	return nil
}

// SendEvent queues an event to be sent to the daemon.
// Events are batched and sent in bursts within the debounce window.
// Returns ErrQueueFull if the queue is full (non-blocking send).
func (c *Client) SendEvent(event Event) error {
	if c == nil {
		return ErrNilClient
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}

	select {
	case c.eventQueue <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

// startBatcher drains the queue and flushes every debounce tick. Several
// events about the same entity inside one window collapse into the latest.
func (c *Client) startBatcher() {
	defer close(c.batcherDone)

	ticker := time.NewTicker(c.debounce)
	defer ticker.Stop()

	var pending []Event
	index := make(map[string]int)

	add := func(e Event) {
		k := e.key()
		if i, ok := index[k]; ok {
			pending[i] = e
			return
		}
		index[k] = len(pending)
		pending = append(pending, e)
	}

	flush := func() {
		for _, e := range pending {
			if err := c.sendToSocket(e); err != nil {
				if !isConnectionError(err) {
					slog.Warn("failed to send batched event", "entity_id", e.EntityID, "error", err)
				}
			}
		}
		pending = pending[:0]
		clear(index)
	}

	for {
		select {
		case <-c.ctx.Done():
			// Drain what is left before exiting
			for e := range c.eventQueue {
				add(e)
			}
			flush()
			return

		case event, ok := <-c.eventQueue:
			if !ok {
				flush()
				return
			}
			add(event)

		case <-ticker.C:
			flush()
		}
	}
}

// sendToSocket writes one event to the daemon socket
func (c *Client) sendToSocket(event Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return ErrNotConnected
	}

	// Short write deadline to detect dead connections
	if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
		return fmt.Errorf("connection error: %w", err)
	}
	defer func() { _ = c.conn.SetWriteDeadline(time.Time{}) }()

	msg := Message{
		Version: ProtocolVersion,
		Type:    "event",
		Event:   &event,
	}
	return c.encoder.Encode(msg)
}

// Listen starts listening for events from the daemon.
// It returns a channel that receives events and handles reconnection automatically.
// The channel is closed when context is done or reconnection fails.
func (c *Client) Listen(ctx context.Context) (<-chan Event, error) {
	if c == nil {
		ch := make(chan Event)
		close(ch)
		return ch, ErrNilClient
	}

	eventChan := make(chan Event, 10)
	go c.listenLoop(ctx, eventChan)
	return eventChan, nil
}

func (c *Client) listenLoop(ctx context.Context, eventChan chan Event) {
	defer close(eventChan)

	for {
		err := c.readEvents(ctx, eventChan)
		if ctx.Err() != nil || c.ctx.Err() != nil {
			return
		}

		slog.Info("connection to daemon lost, reconnecting", "error", err)
		c.notifyf("warn", "live updates interrupted, reconnecting")

		if !c.reconnect(ctx) {
			slog.Warn("failed to reconnect to daemon, giving up", "attempts", c.maxRetries)
			c.notifyf("error", "live updates unavailable")
			return
		}
		c.notifyf("info", "live updates restored")
	}
}

// readEvents reads messages from the socket and forwards board events
func (c *Client) readEvents(ctx context.Context, eventChan chan Event) error {
	// Unblock the decoder when the caller gives up
	stop := context.AfterFunc(ctx, func() {
		c.mu.Lock()
		if c.conn != nil {
			_ = c.conn.SetReadDeadline(time.Now())
		}
		c.mu.Unlock()
	})
	defer stop()

	for {
		var msg Message

		c.mu.Lock()
		if c.conn == nil {
			c.mu.Unlock()
			return ErrNotConnected
		}
		// Read deadline to detect hung connections; the daemon pings every 30s
		if err := c.conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
			c.mu.Unlock()
			return fmt.Errorf("failed to set read deadline: %w", err)
		}
		decoder := c.decoder
		c.mu.Unlock()

		if err := ctx.Err(); err != nil {
			return err
		}
		if err := decoder.Decode(&msg); err != nil {
			return fmt.Errorf("failed to decode message: %w", err)
		}

		if msg.Version != 0 && msg.Version != ProtocolVersion {
			slog.Debug("protocol version mismatch", "got", msg.Version, "want", ProtocolVersion)
		}

		switch msg.Type {
		case "event":
			if msg.Event == nil || !msg.Event.IsBoardChange() {
				continue
			}
			c.mu.Lock()
			fresh := msg.Event.SequenceID > c.lastSequence
			if fresh {
				c.lastSequence = msg.Event.SequenceID
			}
			c.mu.Unlock()
			if !fresh {
				continue
			}
			select {
			case eventChan <- *msg.Event:
			case <-ctx.Done():
				return ctx.Err()
			}

		case "ping":
			if err := c.sendToSocket(Event{Type: EventPong}); err != nil && !isConnectionError(err) {
				slog.Debug("failed to send pong", "error", err)
			}
		}
	}
}

// isConnectionError checks if an error is a network connection error
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, ErrNotConnected) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "connection reset")
}

// reconnect retries Connect with exponential backoff, up to maxRetries times
func (c *Client) reconnect(ctx context.Context) bool {
	delay := c.baseDelay

	for i := 0; i < c.maxRetries; i++ {
		select {
		case <-ctx.Done():
			return false
		case <-c.ctx.Done():
			return false
		case <-time.After(delay):
			c.mu.Lock()
			if c.conn != nil {
				_ = c.conn.Close()
				c.conn = nil
			}
			c.mu.Unlock()

			if err := c.Connect(ctx); err == nil {
				slog.Info("reconnected to daemon", "attempt", i+1)
				return true
			}

			slog.Debug("reconnection attempt failed", "attempt", i+1, "max_retries", c.maxRetries, "retry_in", delay)
			delay *= 2
		}
	}

	return false
}

// Subscribe changes the subscription to a specific tenant.
// An empty tenant ID subscribes to every tenant.
func (c *Client) Subscribe(tenantID string) error {
	if c == nil {
		return ErrNilClient
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.currentTenant = tenantID

	if c.conn == nil {
		return ErrNotConnected
	}

	msg := Message{
		Version: ProtocolVersion,
		Type:    "subscribe",
		Subscribe: &SubscribeMessage{
			TenantID: tenantID,
		},
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
		return fmt.Errorf("connection error: %w", err)
	}
	defer func() { _ = c.conn.SetWriteDeadline(time.Time{}) }()

	return c.encoder.Encode(msg)
}

// Close flushes pending events, closes the connection and stops all goroutines.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.eventQueue)
	started := c.batcherStart
	c.mu.Unlock()

	if started {
		// Batcher sees the closed queue and flushes before exiting
		<-c.batcherDone
	}
	c.cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}
