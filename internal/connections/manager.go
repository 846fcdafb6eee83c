package connections

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/phoebe-ai/phoebe-client/internal/logger"
)

// TimeoutConfig holds the various timeout settings for WebSocket connections
type TimeoutConfig struct {
	PongWait   time.Duration
	PingPeriod time.Duration
	WriteWait  time.Duration
}

// DefaultTimeouts provides sensible default timeout values
var DefaultTimeouts = TimeoutConfig{
	PongWait:   30 * time.Second,
	PingPeriod: 27 * time.Second, // (PongWait * 9) / 10
	WriteWait:  10 * time.Second,
}

// client wraps a connection with its write lock. Gorilla connections allow
// a single concurrent writer, and broadcasts race against the per-handler
// ping loop.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(messageType int, payload []byte, deadline time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(deadline))
	return c.conn.WriteMessage(messageType, payload)
}

// Manager handles the lifecycle of connected UI clients and fans events out
// to all of them.
type Manager struct {
	connections sync.Map
	timeouts    TimeoutConfig
}

// NewManager creates a new connection manager with the specified timeouts
func NewManager(timeouts TimeoutConfig) *Manager {
	return &Manager{
		timeouts: timeouts,
	}
}

// AddConnection registers a new WebSocket connection
func (m *Manager) AddConnection(conn *websocket.Conn) {
	m.connections.Store(conn, &client{conn: conn})
}

// RemoveConnection removes a WebSocket connection
func (m *Manager) RemoveConnection(conn *websocket.Conn) {
	m.connections.Delete(conn)
}

// GetConnectionCount returns the current number of active connections
func (m *Manager) GetConnectionCount() int {
	count := 0
	m.connections.Range(func(key, value interface{}) bool {
		count++
		return true
	})
	return count
}

// HasConnection checks if a specific connection exists
func (m *Manager) HasConnection(conn *websocket.Conn) bool {
	_, exists := m.connections.Load(conn)
	return exists
}

// GetTimeouts returns the current timeout configuration
func (m *Manager) GetTimeouts() TimeoutConfig {
	return m.timeouts
}

// WriteTo sends a text payload to one connection under the write lock.
func (m *Manager) WriteTo(conn *websocket.Conn, payload []byte) error {
	value, ok := m.connections.Load(conn)
	if !ok {
		return websocket.ErrCloseSent
	}
	return value.(*client).write(websocket.TextMessage, payload, m.timeouts.WriteWait)
}

// Broadcast marshals an event once and sends it to every connected client.
// Clients that fail the write are dropped.
func (m *Manager) Broadcast(event interface{}) {
	payload, err := json.Marshal(event)
	if err != nil {
		logger.Error(logger.MIDDLEWARE, "Failed to marshal broadcast event: %v", err)
		return
	}
	m.broadcast(websocket.TextMessage, payload)
}

// BroadcastBinary sends raw bytes (synthesized audio) to every client.
func (m *Manager) BroadcastBinary(payload []byte) {
	m.broadcast(websocket.BinaryMessage, payload)
}

func (m *Manager) broadcast(messageType int, payload []byte) {
	m.connections.Range(func(key, value interface{}) bool {
		c := value.(*client)
		if err := c.write(messageType, payload, m.timeouts.WriteWait); err != nil {
			logger.Warn(logger.MIDDLEWARE, "Dropping client after failed broadcast: %v", err)
			m.connections.Delete(key)
			_ = c.conn.Close()
		}
		return true
	})
}

// BinaryWriter adapts the manager into an io.Writer so audio producers can
// stream straight into the broadcast path.
func (m *Manager) BinaryWriter() *BinaryWriter {
	return &BinaryWriter{manager: m}
}

type BinaryWriter struct {
	manager *Manager
}

func (w *BinaryWriter) Write(p []byte) (int, error) {
	// The payload is copied because broadcast happens synchronously per
	// client, but callers may reuse the buffer between calls.
	buf := make([]byte, len(p))
	copy(buf, p)
	w.manager.BroadcastBinary(buf)
	return len(p), nil
}
