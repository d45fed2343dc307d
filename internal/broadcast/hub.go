// Package broadcast pushes invalidation events to connected board viewers.
package broadcast

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// EventNoticesUpdated is the only event on the wire. It carries no notice
// data; clients re-fetch the list when they see it.
const EventNoticesUpdated = "update_notices"

// Broadcaster is the publish capability handed to the notice service.
type Broadcaster interface {
	Publish(event string)
}

type client struct {
	conn *websocket.Conn
	send chan string
}

// Hub tracks connected viewer websockets and fans events out to them.
// Delivery is best-effort: a client whose send buffer is full is dropped.
type Hub struct {
	logger   *logrus.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

func (h *Hub) Publish(event string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c.send <- event:
		default:
			h.removeLocked(c)
		}
	}
}

// Subscribe upgrades the request to a websocket and registers the viewer.
// It blocks until the peer disconnects.
func (h *Hub) Subscribe(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Error("failed to upgrade websocket")
		return
	}

	c := &client{conn: conn, send: make(chan string, 8)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go c.writePump()

	// Reads are discarded; the first error means the peer went away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.mu.Lock()
	h.removeLocked(c)
	h.mu.Unlock()
}

// ClientCount reports how many viewers are currently connected.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}

	delete(h.clients, c)
	close(c.send)
}

func (c *client) writePump() {
	for event := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, []byte(event)); err != nil {
			break
		}
	}

	c.conn.Close()
}
