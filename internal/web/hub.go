package web

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/infincia/picamera-webthing/internal/debug"
)

const writeDeadline = 10 * time.Second

// statusMessage is the websocket frame sent for property updates,
// matching the Web Thing "propertyStatus" message shape.
type statusMessage struct {
	MessageType string                 `json:"messageType"`
	Data        map[string]interface{} `json:"data"`
}

// Hub fans property-status updates out to connected websocket clients.
// Each connection carries its own write lock since a connection only
// supports one concurrent writer.
type Hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]*sync.Mutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]*sync.Mutex),
	}
}

// Register adds a connection to the broadcast set.
func (h *Hub) Register(conn *websocket.Conn) {
	h.mu.Lock()
	h.clients[conn] = &sync.Mutex{}
	total := len(h.clients)
	h.mu.Unlock()

	debug.Live("Websocket client connected (total: %d)", total)
}

// Unregister removes a connection from the broadcast set.
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.mu.Lock()
	_, ok := h.clients[conn]
	delete(h.clients, conn)
	h.mu.Unlock()

	if ok {
		debug.Live("Websocket client disconnected")
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastStatus sends a propertyStatus message carrying one changed
// property to every client. Failed writes drop the client.
func (h *Hub) BroadcastStatus(name string, value interface{}) {
	h.broadcast(statusMessage{
		MessageType: "propertyStatus",
		Data:        map[string]interface{}{name: value},
	})
}

// SendSnapshot sends a propertyStatus message with every current value
// to a single freshly connected client.
func (h *Hub) SendSnapshot(conn *websocket.Conn, values map[string]interface{}) error {
	data, err := json.Marshal(statusMessage{
		MessageType: "propertyStatus",
		Data:        values,
	})
	if err != nil {
		return err
	}
	return h.write(conn, data)
}

func (h *Hub) broadcast(msg statusMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		debug.Error(err)
		return
	}

	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		if err := h.write(conn, data); err != nil {
			debug.Verbose("Websocket write failed, dropping client: %v", err)
			h.Unregister(conn)
			conn.Close()
		}
	}
}

func (h *Hub) write(conn *websocket.Conn, data []byte) error {
	h.mu.RLock()
	lock, ok := h.clients[conn]
	h.mu.RUnlock()
	if !ok {
		return nil
	}

	lock.Lock()
	defer lock.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	return conn.WriteMessage(websocket.TextMessage, data)
}
