package gateway

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn represents a single WebSocket connection.
type Conn struct {
	ID          string
	WS          *websocket.Conn
	writeMu     sync.Mutex
	seq         int
	ConnectedAt time.Time
}

// Send writes a frame to the WebSocket connection (thread-safe).
func (c *Conn) Send(frame Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.WS.WriteJSON(frame)
}

// SendEvent pushes an event frame with the connection's next sequence number.
func (c *Conn) SendEvent(event string, payload any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.seq++
	return c.WS.WriteJSON(EventFrame(event, c.seq, payload))
}

// ConnManager tracks all active WebSocket connections.
type ConnManager struct {
	mu    sync.RWMutex
	conns map[string]*Conn // connID → conn
}

func NewConnManager() *ConnManager {
	return &ConnManager{conns: make(map[string]*Conn)}
}

// Add registers a new connection.
func (m *ConnManager) Add(conn *Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conns[conn.ID] = conn
}

// Remove unregisters a connection.
func (m *ConnManager) Remove(connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.conns, connID)
}

// Count returns the number of connected clients.
func (m *ConnManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns)
}

// ReadFrame reads and parses a WebSocket message into a Frame.
func ReadFrame(ws *websocket.Conn) (Frame, error) {
	var frame Frame
	_, msg, err := ws.ReadMessage()
	if err != nil {
		return frame, err
	}
	err = json.Unmarshal(msg, &frame)
	return frame, err
}
