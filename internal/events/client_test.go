package events

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// ============================================================================
// Test Helpers
// ============================================================================

// mockDaemon accepts client connections, records what they send and lets
// the test push messages back
type mockDaemon struct {
	socketPath string
	listener   net.Listener
	received   chan Message

	mu    sync.Mutex
	conns []net.Conn
}

func setupMockDaemon(t *testing.T) *mockDaemon {
	t.Helper()

	socketPath := filepath.Join(t.TempDir(), "test.sock")
	listener, err := (&net.ListenConfig{}).Listen(context.Background(), "unix", socketPath)
	if err != nil {
		t.Fatalf("Failed to create mock daemon listener: %v", err)
	}

	d := &mockDaemon{
		socketPath: socketPath,
		listener:   listener,
		received:   make(chan Message, 100),
	}

	var wg sync.WaitGroup
	t.Cleanup(func() {
		_ = listener.Close()
		d.mu.Lock()
		for _, c := range d.conns {
			_ = c.Close()
		}
		d.mu.Unlock()
		wg.Wait()
	})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			d.mu.Lock()
			d.conns = append(d.conns, conn)
			d.mu.Unlock()

			wg.Add(1)
			go func(c net.Conn) {
				defer wg.Done()
				decoder := json.NewDecoder(c)
				for {
					var msg Message
					if err := decoder.Decode(&msg); err != nil {
						return
					}
					d.received <- msg
				}
			}(conn)
		}
	}()

	return d
}

// send pushes a message to every connected client
func (d *mockDaemon) send(t *testing.T, msg Message) {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range d.conns {
		if err := json.NewEncoder(c).Encode(msg); err != nil {
			t.Fatalf("Failed to send message: %v", err)
		}
	}
}

// next waits for the next message of the given type
func (d *mockDaemon) next(t *testing.T, msgType string) Message {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case msg := <-d.received:
			if msg.Type == msgType {
				return msg
			}
		case <-timeout:
			t.Fatalf("Timed out waiting for %q message", msgType)
		}
	}
}

func newConnectedClient(t *testing.T, d *mockDaemon) *Client {
	t.Helper()
	client, err := NewClient(d.socketPath, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	return client
}

// ============================================================================
// Client Creation Tests
// ============================================================================

func TestNewClient_DefaultDebounce(t *testing.T) {
	client, err := NewClient(filepath.Join(t.TempDir(), "esteira.sock"), 0)
	if err != nil {
		t.Fatalf("Expected NewClient to succeed, got error: %v", err)
	}
	defer func() { _ = client.Close() }()

	if client.debounce != DefaultDebounce {
		t.Errorf("Expected debounce %v, got %v", DefaultDebounce, client.debounce)
	}
}

func TestNewClient_RequiresSocketPath(t *testing.T) {
	if _, err := NewClient("", 0); err == nil {
		t.Fatal("Expected error for empty socket path")
	}
}

// ============================================================================
// Connection & Subscription Tests
// ============================================================================

func TestConnect_SendsSubscription(t *testing.T) {
	d := setupMockDaemon(t)
	client, err := NewClient(d.socketPath, 0)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	defer func() { _ = client.Close() }()

	// Subscribing before connecting records the tenant for the handshake
	if err := client.Subscribe("acme"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Expected ErrNotConnected, got %v", err)
	}
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	msg := d.next(t, "subscribe")
	if msg.Version != ProtocolVersion {
		t.Errorf("Expected version %d, got %d", ProtocolVersion, msg.Version)
	}
	if msg.Subscribe == nil || msg.Subscribe.TenantID != "acme" {
		t.Errorf("Expected subscription to acme, got %+v", msg.Subscribe)
	}
}

func TestConnect_NoServer(t *testing.T) {
	client, err := NewClient(filepath.Join(t.TempDir(), "missing.sock"), 0)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	defer func() { _ = client.Close() }()

	err = client.Connect(context.Background())
	if err == nil {
		t.Fatal("Expected Connect to fail without a daemon")
	}
	if de := ClassifyDaemonError(err); de.Code != ErrSocketNotFound {
		t.Errorf("Expected ErrSocketNotFound, got %v", de.Code)
	}
}

func TestSubscribe_AfterConnect(t *testing.T) {
	d := setupMockDaemon(t)
	client := newConnectedClient(t, d)
	d.next(t, "subscribe")

	if err := client.Subscribe("tenant-2"); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	msg := d.next(t, "subscribe")
	if msg.Subscribe.TenantID != "tenant-2" {
		t.Errorf("Expected tenant-2, got %q", msg.Subscribe.TenantID)
	}
}

// ============================================================================
// Sending Tests
// ============================================================================

func TestSendEvent_CoalescesPerEntity(t *testing.T) {
	d := setupMockDaemon(t)
	// Long window so only Close flushes
	client, err := NewClient(d.socketPath, time.Hour)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	d.next(t, "subscribe")

	_ = client.SendEvent(Event{Type: EventStageChanged, TenantID: "t1", Kind: "shows", EntityID: "E1", Stage: "PROPOSTA"})
	_ = client.SendEvent(Event{Type: EventStageChanged, TenantID: "t1", Kind: "shows", EntityID: "E2", Stage: "SONDAGEM"})
	_ = client.SendEvent(Event{Type: EventStageChanged, TenantID: "t1", Kind: "shows", EntityID: "E1", Stage: "ASSINADO"})

	// Close flushes anything still pending
	if err := client.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	got := map[string]string{}
	for len(got) < 2 {
		msg := d.next(t, "event")
		got[msg.Event.EntityID] = string(msg.Event.Stage)
	}

	if got["E1"] != "ASSINADO" {
		t.Errorf("Expected latest stage ASSINADO for E1, got %q", got["E1"])
	}
	if got["E2"] != "SONDAGEM" {
		t.Errorf("Expected SONDAGEM for E2, got %q", got["E2"])
	}

	select {
	case msg := <-d.received:
		if msg.Type == "event" {
			t.Errorf("Unexpected extra event: %+v", msg.Event)
		}
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSendEvent_QueueFull(t *testing.T) {
	client, err := NewClient(filepath.Join(t.TempDir(), "esteira.sock"), 0)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	defer func() { _ = client.Close() }()

	// Never connected, so nothing drains the queue
	for i := 0; i < cap(client.eventQueue); i++ {
		if err := client.SendEvent(Event{Type: EventStageChanged}); err != nil {
			t.Fatalf("Unexpected error at %d: %v", i, err)
		}
	}
	if err := client.SendEvent(Event{Type: EventStageChanged}); !errors.Is(err, ErrQueueFull) {
		t.Errorf("Expected ErrQueueFull, got %v", err)
	}
}

func TestSendEvent_AfterClose(t *testing.T) {
	client, err := NewClient(filepath.Join(t.TempDir(), "esteira.sock"), 0)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	_ = client.Close()

	if err := client.SendEvent(Event{Type: EventStageChanged}); !errors.Is(err, ErrClientClosed) {
		t.Errorf("Expected ErrClientClosed, got %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("Second Close should be a no-op, got %v", err)
	}
}

// ============================================================================
// Listening Tests
// ============================================================================

func TestListen_ForwardsBoardEventsInOrder(t *testing.T) {
	d := setupMockDaemon(t)
	client := newConnectedClient(t, d)
	d.next(t, "subscribe")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := client.Listen(ctx)
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}

	d.send(t, Message{Version: ProtocolVersion, Type: "event", Event: &Event{Type: EventStageChanged, EntityID: "E1", SequenceID: 1}})
	// Replayed sequence number is dropped
	d.send(t, Message{Version: ProtocolVersion, Type: "event", Event: &Event{Type: EventStageChanged, EntityID: "dup", SequenceID: 1}})
	d.send(t, Message{Version: ProtocolVersion, Type: "event", Event: &Event{Type: EventPing, SequenceID: 2}})
	d.send(t, Message{Version: ProtocolVersion, Type: "event", Event: &Event{Type: EventStageChanged, EntityID: "E2", SequenceID: 3}})

	for _, want := range []string{"E1", "E2"} {
		select {
		case ev := <-ch:
			if ev.EntityID != want {
				t.Errorf("Expected %s, got %s", want, ev.EntityID)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("Timed out waiting for %s", want)
		}
	}

	cancel()
	select {
	case _, ok := <-ch:
		for ok {
			_, ok = <-ch
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Listen channel not closed after cancel")
	}
}

func TestListen_AnswersPing(t *testing.T) {
	d := setupMockDaemon(t)
	client := newConnectedClient(t, d)
	d.next(t, "subscribe")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if _, err := client.Listen(ctx); err != nil {
		t.Fatalf("Listen failed: %v", err)
	}

	d.send(t, Message{Version: ProtocolVersion, Type: "ping", Event: &Event{Type: EventPing}})

	msg := d.next(t, "event")
	if msg.Event == nil || msg.Event.Type != EventPong {
		t.Errorf("Expected pong, got %+v", msg.Event)
	}
}

// ============================================================================
// Nil Client Tests
// ============================================================================

func TestNilClientMethods(t *testing.T) {
	var client *Client

	client.SetNotifyFunc(func(level, message string) {})

	if err := client.Connect(context.Background()); !errors.Is(err, ErrNilClient) {
		t.Errorf("Connect: expected ErrNilClient, got %v", err)
	}
	if err := client.Subscribe("t1"); !errors.Is(err, ErrNilClient) {
		t.Errorf("Subscribe: expected ErrNilClient, got %v", err)
	}
	if err := client.SendEvent(Event{}); !errors.Is(err, ErrNilClient) {
		t.Errorf("SendEvent: expected ErrNilClient, got %v", err)
	}
	ch, err := client.Listen(context.Background())
	if !errors.Is(err, ErrNilClient) {
		t.Errorf("Listen: expected ErrNilClient, got %v", err)
	}
	if _, ok := <-ch; ok {
		t.Error("Listen on nil client should return a closed channel")
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close on nil client should return nil, got %v", err)
	}
}
