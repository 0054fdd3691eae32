// Package realtime fans out change notifications to connected clients.
// Payloads carry only the table and row id; consumers re-fetch whatever they
// render, so a lost or reordered notification at worst delays a refresh.
package realtime

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// Event names a changed row. An empty ID on a subscription means the whole
// table.
type Event struct {
	Table string `json:"table"`
	ID    string `json:"id,omitempty"`
}

type subscribeMessage struct {
	Action string `json:"action"`
	Table  string `json:"table"`
	ID     string `json:"id,omitempty"`
}

type subscription struct {
	table string
	id    string
}

type client struct {
	ws   *websocket.Conn
	out  chan Event
	done chan struct{}
	once sync.Once

	mu   sync.Mutex
	subs map[subscription]struct{}
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

func (c *client) wants(ev Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.subs[subscription{table: ev.Table}]; ok {
		return true
	}
	_, ok := c.subs[subscription{table: ev.Table, id: ev.ID}]
	return ok
}

// Hub tracks connected clients and delivers events to the ones subscribed.
// It satisfies the Publisher hook the write handlers call after a successful
// mutation.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*client]struct{}
	upgrader websocket.Upgrader
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Publish delivers the event to every subscribed client. A client whose send
// buffer is full is dropped rather than blocking the writer.
func (h *Hub) Publish(table, id string) {
	ev := Event{Table: table, ID: id}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.wants(ev) {
			continue
		}
		select {
		case c.out <- ev:
		case <-c.done:
		default:
			c.close()
		}
	}
}

// Stop disconnects every client. New connections are still accepted; Stop is
// for shutdown, where the HTTP server stops listening anyway.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.close()
	}
	h.clients = make(map[*client]struct{})
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
}

// ServeHTTP upgrades the connection and serves it until the peer goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("realtime: websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		ws:   ws,
		out:  make(chan Event, 64),
		done: make(chan struct{}),
		subs: make(map[subscription]struct{}),
	}
	h.add(c)
	go c.writeLoop()

	c.readLoop()

	h.remove(c)
	c.close()
	_ = ws.Close()
}

func (c *client) readLoop() {
	for {
		var msg subscribeMessage
		if err := c.ws.ReadJSON(&msg); err != nil {
			return
		}
		if msg.Table == "" {
			continue
		}
		sub := subscription{table: msg.Table, id: msg.ID}
		c.mu.Lock()
		switch msg.Action {
		case "subscribe":
			c.subs[sub] = struct{}{}
		case "unsubscribe":
			delete(c.subs, sub)
		}
		c.mu.Unlock()
	}
}

func (c *client) writeLoop() {
	for {
		select {
		case ev := <-c.out:
			if err := c.ws.WriteJSON(ev); err != nil {
				c.close()
				return
			}
		case <-c.done:
			return
		}
	}
}
