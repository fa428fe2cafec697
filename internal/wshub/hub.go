package wshub

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/coder/websocket"
)

const (
	sendBuffer = 32
	writeWait  = 10 * time.Second
)

var (
	ErrConnectionGone = errors.New("connection gone")
	ErrSendBufferFull = errors.New("send buffer full")
)

// Client represents a single WebSocket connection in the hub.
type Client struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte
}

func NewClient(id string, conn *websocket.Conn) *Client {
	return &Client{
		ID:   id,
		Conn: conn,
		Send: make(chan []byte, sendBuffer),
	}
}

// WritePump reads from the Send channel and writes to the WebSocket connection.
// A failed write removes the client from h and closes the connection, so later
// sends report ErrConnectionGone.
func (c *Client) WritePump(ctx context.Context, h *Hub) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.Send:
			if !ok {
				return
			}
			wctx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.Conn.Write(wctx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				h.drop(c)
				c.Conn.CloseNow()
				return
			}
		}
	}
}

// Hub routes payloads to connections by id.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// NewHub creates a new Hub.
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

// drop unregisters c unless its id has already been taken by another client.
func (h *Hub) drop(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.clients[c.ID]; ok && cur == c {
		close(c.Send)
		delete(h.clients, c.ID)
	}
}

// Send queues payload for one connection. It never blocks: a full buffer is
// reported as ErrSendBufferFull.
func (h *Hub) Send(ctx context.Context, id string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[id]
	if !ok {
		return ErrConnectionGone
	}
	select {
	case c.Send <- payload:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
