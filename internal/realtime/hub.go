package realtime

import (
	"context"
	"log/slog"
	"sync"
)

// Hub fans broadcast frames out to all connected dashboard clients. Sends
// never block: a client whose buffer is full drops the frame, the dashboard
// reconciles on its next poll.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	clients    map[*Client]struct{}
	done       chan struct{}
	logger     *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewHub builds an empty hub. Run must be started for it to do anything.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 64),
		clients:    make(map[*Client]struct{}),
		done:       make(chan struct{}),
		logger:     logger.With("component", "realtime_hub"),
	}
}

// Run processes register, unregister, and broadcast events until the context
// is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			h.closed = true
			h.mu.Unlock()
			close(h.done)
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			return
		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.logger.Debug("client connected", "clients", len(h.clients))
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.logger.Debug("client disconnected", "clients", len(h.clients))
		case frame := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- frame:
				default:
					// Slow consumer, drop the frame for this client.
					h.logger.Warn("client send buffer full, frame dropped")
				}
			}
		}
	}
}

// add registers a client with the running hub. It reports false once the
// hub has shut down, so connections arriving during shutdown are not lost
// in the register queue.
func (h *Hub) add(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// remove unregisters a client. After shutdown the hub has already closed
// every client, so the send is skipped.
func (h *Hub) remove(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Broadcast queues a frame for delivery to every connected client. A no-op
// when no client is connected or the hub buffer is full.
func (h *Hub) Broadcast(payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	select {
	case h.broadcast <- payload:
	default:
		h.logger.Warn("hub broadcast buffer full, frame dropped")
	}
}
