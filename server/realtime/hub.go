package realtime

import (
	"sync"

	"github.com/gorilla/websocket"

	"tenantdesk/server/common/log"
	"tenantdesk/server/domain"
)

const (
	EventMessageCreated = "message.created"
	EventMessageUpdated = "message.updated"
)

type Event struct {
	Kind    string         `json:"kind"`
	Message domain.Message `json:"message"`
}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// Hub fans intake and management events out to connected dashboard
// sessions. Slow or broken clients are dropped, never waited on.
type Hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]*client
}

func NewHub() *Hub {
	return &Hub{clients: map[*websocket.Conn]*client{}}
}

func (h *Hub) Register(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = &client{conn: conn}
}

func (h *Hub) Unregister(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, conn)
	_ = conn.Close()
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) MessageCreated(msg domain.Message) {
	h.broadcast(Event{Kind: EventMessageCreated, Message: msg})
}

func (h *Hub) MessageUpdated(msg domain.Message) {
	h.broadcast(Event{Kind: EventMessageUpdated, Message: msg})
}

func (h *Hub) broadcast(event Event) {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.writeJSON(event); err != nil {
			log.Debugf("dropping dashboard client after write error: %v", err)
			h.Unregister(c.conn)
		}
	}
}
