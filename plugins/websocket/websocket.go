// Package websocket implements the `broadcast`/`websocket` reference
// plugin (§4.4/§9): a room-based hub built on gorilla/websocket,
// generalized from the teacher's tenant/user-scoped hub
// (internal/websocket/hub.go) down to plain named rooms, since the
// flux engine has no tenant or user concept of its own.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/orbitflux/flux/internal/plugin"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Client is one connected websocket peer, subscribed to zero or more
// rooms.
type Client struct {
	conn  *websocket.Conn
	send  chan []byte
	rooms map[string]bool
	mu    sync.Mutex
}

// Hub fans messages out to room subscribers. Mirrors the teacher's
// register/unregister/broadcast channel pattern, trimmed of the
// tenant/user auto-subscription and presence-event logic that belongs
// to the teacher's domain, not this engine's.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	rooms   map[string]map[*Client]bool
}

func newHub() *Hub {
	return &Hub{
		clients: map[*Client]bool{},
		rooms:   map[string]map[*Client]bool{},
	}
}

// Upgrade promotes an HTTP request to a websocket connection and
// registers the resulting Client with the hub. Exposed so the
// `broadcast` plugin's GetClient caller (an action handler) can accept
// inbound connections.
func (h *Hub) Upgrade(w http.ResponseWriter, r *http.Request) (*Client, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	c := &Client{conn: conn, send: make(chan []byte, 16), rooms: map[string]bool{}}
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
	go h.writePump(c)
	return c, nil
}

// Subscribe adds a client to a room.
func (h *Hub) Subscribe(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[room] == nil {
		h.rooms[room] = map[*Client]bool{}
	}
	h.rooms[room][c] = true
	c.mu.Lock()
	c.rooms[room] = true
	c.mu.Unlock()
}

// Unregister removes a client from every room it joined and closes its
// send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.clients[c] {
		return
	}
	for room := range c.rooms {
		delete(h.rooms[room], c)
	}
	delete(h.clients, c)
	close(c.send)
}

// Broadcast sends a JSON-encoded payload to every client subscribed to
// room.
func (h *Hub) Broadcast(room string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[room] {
		select {
		case c.send <- data:
		default:
			go h.Unregister(c)
		}
	}
	return nil
}

func (h *Hub) writePump(c *Client) {
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.Unregister(c)
			return
		}
	}
}

// Broadcaster is the `broadcast`/`websocket` Plugin implementation.
type Broadcaster struct {
	hub *Hub
}

// New returns a fresh, un-set-up Broadcaster instance.
func New() plugin.Plugin {
	return &Broadcaster{}
}

func (b *Broadcaster) Name() string { return "broadcast" }

// Setup takes no required options — the hub has no external
// dependency to dial.
func (b *Broadcaster) Setup(ctx context.Context, config map[string]any) error {
	b.hub = newHub()
	return nil
}

func (b *Broadcaster) Teardown(ctx context.Context) error {
	return nil
}

// GetClient returns the live *Hub.
func (b *Broadcaster) GetClient() any {
	if b.hub == nil {
		panic(&plugin.NotSetUpError{LogicalKey: "broadcast"})
	}
	return b.hub
}
