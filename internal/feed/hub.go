// Package feed pushes newly recorded button clicks to WebSocket subscribers.
// The dataset is written by an external bot, so new clicks are discovered by
// polling the store rather than by hooking a write path.
package feed

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/coder/websocket"

	"buttonstats/internal/reporting"
)

// ClickMessage is the JSON structure sent to subscribers.
type ClickMessage struct {
	Type  string          `json:"type"`
	Click reporting.Click `json:"click"`
}

// Client represents a single WebSocket connection in the hub.
type Client struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte
}

// WritePump reads from the Send channel and writes to the WebSocket
// connection until the context ends or the channel closes.
func (c *Client) WritePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.Send:
			if !ok {
				return
			}
			if err := c.Conn.Write(ctx, websocket.MessageText, msg); err != nil {
				return
			}
		}
	}
}

// Hub manages the set of connected feed clients.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.ID] = c
}

// Unregister removes a client and closes its Send channel.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[id]; ok {
		close(c.Send)
		delete(h.clients, id)
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends a click to every client. Non-blocking: a client with a
// full Send channel misses the message rather than stalling the poller.
func (h *Hub) Broadcast(click reporting.Click) {
	data, err := json.Marshal(ClickMessage{Type: "click", Click: click})
	if err != nil {
		log.Printf("[Feed] Marshal error: %v\n", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		select {
		case c.Send <- data:
		default:
			// skip clients with full send channels
		}
	}
}
