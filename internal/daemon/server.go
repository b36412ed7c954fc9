// Package daemon runs the local event hub: a Unix socket server that fans
// board change events out to every subscribed esteira process.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/managershow/esteira/internal/events"
)

// ErrServerClosed is returned by Broadcast after Shutdown
var ErrServerClosed = errors.New("daemon server closed")

// client represents a connected client to the daemon
type client struct {
	conn         net.Conn
	send         chan events.Message
	subscription events.SubscribeMessage
	lastPong     time.Time
	mu           sync.Mutex // Protects subscription and lastPong
	closeOnce    sync.Once  // Ensures send channel is closed only once
}

func (c *client) subscribed(tenantID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return tenantID == "" || c.subscription.TenantID == "" || c.subscription.TenantID == tenantID
}

// Server represents the esteira event daemon
type Server struct {
	socketPath      string
	listener        net.Listener
	clients         map[*client]bool
	mu              sync.RWMutex
	ctx             context.Context
	cancel          context.CancelFunc
	broadcast       chan events.Event
	metrics         *Metrics
	sequenceCounter atomic.Int64
	shutdownOnce    sync.Once

	broadcastBuffer  int
	clientBufferSize int
	pingInterval     time.Duration
	staleAfter       time.Duration
}

// Option configures a Server
type Option func(*Server)

// WithBufferSizes sets the broadcast queue and per-client send queue sizes
func WithBufferSizes(broadcast, perClient int) Option {
	return func(s *Server) {
		if broadcast > 0 {
			s.broadcastBuffer = broadcast
		}
		if perClient > 0 {
			s.clientBufferSize = perClient
		}
	}
}

// WithHealthCheck sets how often clients are pinged and how long a client
// may stay silent before it is dropped
func WithHealthCheck(pingInterval, staleAfter time.Duration) Option {
	return func(s *Server) {
		if pingInterval > 0 {
			s.pingInterval = pingInterval
		}
		if staleAfter > 0 {
			s.staleAfter = staleAfter
		}
	}
}

// NewServer creates a new daemon server listening on socketPath
func NewServer(socketPath string, opts ...Option) (*Server, error) {
	if dir := filepath.Dir(socketPath); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create socket directory: %w", err)
		}
	}

	// Remove stale socket file if it exists
	if _, err := os.Stat(socketPath); err == nil {
		if err := os.Remove(socketPath); err != nil {
			return nil, fmt.Errorf("failed to remove stale socket: %w", err)
		}
	}

	lc := net.ListenConfig{}
	listener, err := lc.Listen(context.Background(), "unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create socket listener: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		socketPath:       socketPath,
		listener:         listener,
		clients:          make(map[*client]bool),
		ctx:              ctx,
		cancel:           cancel,
		metrics:          NewMetrics(),
		broadcastBuffer:  100,
		clientBufferSize: 10,
		pingInterval:     30 * time.Second,
		staleAfter:       90 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.broadcast = make(chan events.Event, s.broadcastBuffer)

	return s, nil
}

// Metrics returns the live metrics of the server
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// SocketPath returns the path the server listens on
func (s *Server) SocketPath() string {
	return s.socketPath
}

// Start runs the daemon until ctx is cancelled or Shutdown is called.
// It starts three goroutines: accept, broadcast, and health monitoring.
func (s *Server) Start(ctx context.Context) error {
	slog.Info("daemon starting", "socket", s.socketPath)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	acceptErr := make(chan error, 1)
	go func() {
		acceptErr <- s.acceptLoop(runCtx)
	}()
	go s.broadcastLoop(runCtx)
	go s.monitorHealth(runCtx)

	var err error
	select {
	case <-runCtx.Done():
		slog.Info("daemon context cancelled, shutting down")
	case err = <-acceptErr:
		if err != nil {
			slog.Error("accept loop failed", "error", err)
		}
	}

	if shutdownErr := s.Shutdown(); shutdownErr != nil && err == nil {
		err = shutdownErr
	}
	return err
}

// acceptLoop accepts incoming client connections
func (s *Server) acceptLoop(ctx context.Context) error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept error: %w", err)
		}

		c := &client{
			conn:     conn,
			send:     make(chan events.Message, s.clientBufferSize),
			lastPong: time.Now(),
		}

		s.mu.Lock()
		s.clients[c] = true
		s.mu.Unlock()
		s.updateClientCount()

		slog.Debug("client connected", "clients", s.getClientCount())

		go s.handleClient(c)
		go s.clientWriter(c)
	}
}

// broadcastLoop distributes events to subscribed clients
func (s *Server) broadcastLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case event := <-s.broadcast:
			event.SequenceID = s.sequenceCounter.Add(1)
			s.metrics.IncBroadcasts()

			msg := events.Message{
				Version: events.ProtocolVersion,
				Type:    "event",
				Event:   &event,
			}

			s.mu.RLock()
			for c := range s.clients {
				if !c.subscribed(event.TenantID) {
					continue
				}
				// Slow clients miss events rather than stall the hub
				if !s.sendToClient(c, msg) {
					s.metrics.IncEventsDropped()
					slog.Warn("client send queue full, event dropped", "entity_id", event.EntityID)
				}
			}
			s.mu.RUnlock()
		}
	}
}

// handleClient reads messages from a connected client
func (s *Server) handleClient(c *client) {
	defer func() {
		s.removeClient(c)
		slog.Debug("client disconnected", "clients", s.getClientCount())
	}()

	decoder := json.NewDecoder(c.conn)

	for {
		var msg events.Message
		if err := decoder.Decode(&msg); err != nil {
			return
		}

		if msg.Version != 0 && msg.Version != events.ProtocolVersion {
			slog.Warn("protocol version mismatch", "got", msg.Version, "want", events.ProtocolVersion)
		}

		switch msg.Type {
		case "event":
			if msg.Event == nil {
				continue
			}
			if msg.Event.Type == events.EventPong {
				c.touch()
				continue
			}
			if !msg.Event.IsBoardChange() {
				continue
			}
			s.metrics.IncEventsReceived()
			if err := s.Broadcast(*msg.Event); err != nil {
				s.metrics.IncEventsDropped()
				slog.Warn("broadcast failed", "error", err)
			}

		case "subscribe":
			if msg.Subscribe != nil {
				c.mu.Lock()
				c.subscription = *msg.Subscribe
				c.mu.Unlock()
				slog.Debug("client subscribed", "tenant", msg.Subscribe.TenantID)
			}

		case "pong":
			c.touch()
		}
	}
}

func (c *client) touch() {
	c.mu.Lock()
	c.lastPong = time.Now()
	c.mu.Unlock()
}

// clientWriter sends messages to a client
func (s *Server) clientWriter(c *client) {
	encoder := json.NewEncoder(c.conn)

	for msg := range c.send {
		if err := encoder.Encode(msg); err != nil {
			return
		}
	}
}

// monitorHealth pings clients and removes the ones that stopped answering
func (s *Server) monitorHealth(ctx context.Context) {
	pingTicker := time.NewTicker(s.pingInterval)
	defer pingTicker.Stop()

	pingMsg := events.Message{
		Version: events.ProtocolVersion,
		Type:    "ping",
		Event:   &events.Event{Type: events.EventPing},
	}

	for {
		select {
		case <-ctx.Done():
			return

		case <-pingTicker.C:
			now := time.Now()
			var stale []*client

			s.mu.RLock()
			for c := range s.clients {
				c.mu.Lock()
				silent := now.Sub(c.lastPong)
				c.mu.Unlock()

				if silent > s.staleAfter {
					stale = append(stale, c)
					continue
				}
				if !s.sendToClient(c, pingMsg) {
					slog.Debug("failed to ping client, queue full")
				}
			}
			s.mu.RUnlock()

			// Removal takes the write lock, so it happens after the scan
			for _, c := range stale {
				slog.Info("removing stale client")
				s.removeClient(c)
			}
		}
	}
}

// Broadcast queues an event for every subscribed client (non-blocking)
func (s *Server) Broadcast(event events.Event) error {
	if s.ctx.Err() != nil {
		return ErrServerClosed
	}
	select {
	case s.broadcast <- event:
		return nil
	default:
		return fmt.Errorf("broadcast channel full")
	}
}

// Shutdown closes the listener and every client connection, then removes
// the socket file. It is safe to call more than once.
func (s *Server) Shutdown() error {
	var err error
	s.shutdownOnce.Do(func() {
		slog.Info("shutting down daemon")

		s.cancel()

		if s.listener != nil {
			if closeErr := s.listener.Close(); closeErr != nil && !errors.Is(closeErr, net.ErrClosed) {
				err = closeErr
			}
		}

		s.mu.Lock()
		clients := s.clients
		s.clients = make(map[*client]bool)
		s.mu.Unlock()

		for c := range clients {
			_ = c.conn.Close()
			c.closeOnce.Do(func() {
				close(c.send)
			})
		}
		s.updateClientCount()

		if removeErr := os.Remove(s.socketPath); removeErr != nil && !os.IsNotExist(removeErr) {
			slog.Warn("failed to remove socket file", "error", removeErr)
		}
	})

	return err
}

func (s *Server) getClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (s *Server) updateClientCount() {
	s.metrics.SetConnectedClients(int32(s.getClientCount()))
}

// removeClient safely removes a client from the server
func (s *Server) removeClient(c *client) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()

	_ = c.conn.Close()
	c.closeOnce.Do(func() {
		close(c.send)
	})

	s.updateClientCount()
}

// sendToClient attempts to queue a message for a client (non-blocking).
// Returns false if the queue is full.
func (s *Server) sendToClient(c *client, msg events.Message) bool {
	select {
	case c.send <- msg:
		s.metrics.IncEventsSent()
		return true
	default:
		return false
	}
}
