package server

import (
	"sort"
	"sync"

	"segcheck/internal/protocol"
)

// Hub tracks open connections for broadcast.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]*conn
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{conns: make(map[string]*conn)}
}

func (h *Hub) add(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c.id] = c
}

func (h *Hub) remove(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if current, ok := h.conns[c.id]; ok && current == c {
		delete(h.conns, c.id)
	}
}

// Broadcast queues resp on every connection except the one named. Slow
// connections whose buffers are full are skipped.
func (h *Hub) Broadcast(resp protocol.Response, except string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, c := range h.conns {
		if id == except {
			continue
		}
		out := resp
		out.ClientID = id
		c.offer(out)
	}
}

// IDs returns the connected session ids in sorted order.
func (h *Hub) IDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.conns))
	for id := range h.conns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of open connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}
