package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// ConnectionManager owns this pod's WebSocket clients and their channel
// subscriptions, and fans broadcast payloads out to subscribers.
type ConnectionManager struct {
	mu          sync.RWMutex
	connections map[string]*Connection
	// channel name -> set of connection ids
	channels map[string]map[string]bool

	listener     *NotifyListener
	listenerMu   sync.RWMutex
	writeTimeout time.Duration
}

// Connection is one WebSocket client.
//
// subscriptions is touched only by the goroutine running HandleConnection's
// read loop and its deferred cleanup, so it needs no lock.
type Connection struct {
	ID            string
	Conn          *websocket.Conn
	subscriptions map[string]bool
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewConnectionManager creates an empty manager.
func NewConnectionManager(writeTimeout time.Duration) *ConnectionManager {
	return &ConnectionManager{
		connections:  make(map[string]*Connection),
		channels:     make(map[string]map[string]bool),
		writeTimeout: writeTimeout,
	}
}

// SetListener wires the NOTIFY listener for dynamic LISTEN/UNLISTEN. Called
// once during startup.
func (m *ConnectionManager) SetListener(l *NotifyListener) {
	m.listenerMu.Lock()
	defer m.listenerMu.Unlock()
	m.listener = l
}

// HandleConnection runs one client's lifecycle. Blocks until the connection
// closes.
func (m *ConnectionManager) HandleConnection(parentCtx context.Context, conn *websocket.Conn) {
	ctx, cancel := context.WithCancel(parentCtx)
	c := &Connection{
		ID:            uuid.New().String(),
		Conn:          conn,
		subscriptions: make(map[string]bool),
		ctx:           ctx,
		cancel:        cancel,
	}

	m.register(c)
	defer m.unregister(c)

	m.sendJSON(c, map[string]string{
		"type":          "connection.established",
		"connection_id": c.ID,
	})

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			m.sendJSON(c, map[string]string{"type": "error", "message": "malformed message"})
			continue
		}

		switch msg.Action {
		case "subscribe":
			m.subscribe(ctx, c, msg.Channel)
		case "unsubscribe":
			m.unsubscribe(ctx, c, msg.Channel)
		case "ping":
			m.sendJSON(c, map[string]string{"type": "pong"})
		default:
			m.sendJSON(c, map[string]string{"type": "error", "message": "unknown action: " + msg.Action})
		}
	}
}

// Broadcast delivers a payload to every local subscriber of a channel.
// Called by the NOTIFY listener's receive loop.
func (m *ConnectionManager) Broadcast(channel string, payload []byte) {
	m.mu.RLock()
	var targets []*Connection
	for connID := range m.channels[channel] {
		if c, ok := m.connections[connID]; ok {
			targets = append(targets, c)
		}
	}
	m.mu.RUnlock()

	for _, c := range targets {
		m.send(c, payload)
	}
}

// SubscriberCount returns how many local connections subscribe to a channel.
func (m *ConnectionManager) SubscriberCount(channel string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.channels[channel])
}

func (m *ConnectionManager) register(c *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connections[c.ID] = c
}

func (m *ConnectionManager) unregister(c *Connection) {
	c.cancel()

	m.mu.Lock()
	delete(m.connections, c.ID)
	var emptied []string
	for channel := range c.subscriptions {
		if subs, ok := m.channels[channel]; ok {
			delete(subs, c.ID)
			if len(subs) == 0 {
				delete(m.channels, channel)
				emptied = append(emptied, channel)
			}
		}
	}
	m.mu.Unlock()

	// Drop the PG LISTEN for channels nobody watches anymore.
	for _, channel := range emptied {
		m.unlistenChannel(channel)
	}
}

func (m *ConnectionManager) subscribe(ctx context.Context, c *Connection, channel string) {
	if channel == "" {
		m.sendJSON(c, map[string]string{"type": "error", "message": "channel is required"})
		return
	}

	m.mu.Lock()
	if m.channels[channel] == nil {
		m.channels[channel] = make(map[string]bool)
	}
	m.channels[channel][c.ID] = true
	m.mu.Unlock()
	c.subscriptions[channel] = true

	m.listenerMu.RLock()
	listener := m.listener
	m.listenerMu.RUnlock()
	if listener != nil {
		if err := listener.Subscribe(ctx, channel); err != nil {
			slog.Warn("channel LISTEN failed", "channel", channel, "error", err)
		}
	}

	m.sendJSON(c, map[string]string{"type": "subscribed", "channel": channel})
}

func (m *ConnectionManager) unsubscribe(_ context.Context, c *Connection, channel string) {
	m.mu.Lock()
	empty := false
	if subs, ok := m.channels[channel]; ok {
		delete(subs, c.ID)
		if len(subs) == 0 {
			delete(m.channels, channel)
			empty = true
		}
	}
	m.mu.Unlock()
	delete(c.subscriptions, channel)

	if empty {
		m.unlistenChannel(channel)
	}
	m.sendJSON(c, map[string]string{"type": "unsubscribed", "channel": channel})
}

func (m *ConnectionManager) unlistenChannel(channel string) {
	m.listenerMu.RLock()
	listener := m.listener
	m.listenerMu.RUnlock()
	if listener == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := listener.Unsubscribe(ctx, channel); err != nil {
		slog.Warn("channel UNLISTEN failed", "channel", channel, "error", err)
	}
}

func (m *ConnectionManager) sendJSON(c *Connection, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	m.send(c, data)
}

func (m *ConnectionManager) send(c *Connection, payload []byte) {
	ctx, cancel := context.WithTimeout(c.ctx, m.writeTimeout)
	defer cancel()
	if err := c.Conn.Write(ctx, websocket.MessageText, payload); err != nil {
		slog.Debug("websocket write failed, dropping connection", "connection_id", c.ID, "error", err)
		c.cancel()
	}
}
