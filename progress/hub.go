package progress

import (
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// client pairs a connection with a write mutex. gorilla/websocket allows at
// most one concurrent writer per connection, and two batch uploads can
// share one socketId.
type client struct {
	conn *websocket.Conn
	wmu  sync.Mutex
}

func (c *client) writeJSON(v any) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.conn.WriteJSON(v)
}

// Hub delivers progress events over websockets, keyed by the client-chosen
// socketId the frontend sends along with its upload request.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[string]*client
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[string]*client),
	}
}

// Attach upgrades the request and registers the connection under its
// socketId until the peer goes away. A reconnect with the same id replaces
// the old connection.
func (h *Hub) Attach(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("socketId")
	if id == "" {
		http.Error(w, "socketId required", http.StatusBadRequest)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	cl := &client{conn: conn}

	h.mu.Lock()
	if old, ok := h.clients[id]; ok {
		old.conn.Close()
	}
	h.clients[id] = cl
	h.mu.Unlock()

	go h.reap(id, cl)
}

// reap drains the connection until it errors, then unregisters it.
func (h *Hub) reap(id string, cl *client) {
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			break
		}
	}
	cl.conn.Close()
	h.mu.Lock()
	if h.clients[id] == cl {
		delete(h.clients, id)
	}
	h.mu.Unlock()
}

// Emit pushes one event to the channel's connection, if any. Delivery is
// best effort; a dead connection just drops the event.
func (h *Hub) Emit(id string, ev Event) {
	if id == "" {
		return
	}
	h.mu.Lock()
	cl := h.clients[id]
	h.mu.Unlock()
	if cl == nil {
		return
	}
	if err := cl.writeJSON(ev); err != nil {
		log.Printf("progress push to %s failed: %v", id, err)
	}
}
