package output

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// clientQueue is how many blocks a slow client may fall behind before blocks
// are dropped for it.
const clientQueue = 16

type client struct {
	id   uuid.UUID
	addr string
	send chan []byte
}

// hub fans encoded blocks out to network clients without ever blocking the
// writer.
type hub struct {
	mu      sync.Mutex
	clients map[uuid.UUID]*client
	dropped atomic.Uint64
}

func newHub() *hub {
	return &hub{clients: make(map[uuid.UUID]*client)}
}

func (h *hub) add(addr string) *client {
	c := &client{
		id:   uuid.New(),
		addr: addr,
		send: make(chan []byte, clientQueue),
	}
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	return c
}

func (h *hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.id]; !ok {
		return
	}
	delete(h.clients, c.id)
	close(c.send)
}

func (h *hub) broadcast(b []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.clients) == 0 {
		return
	}
	data := append([]byte(nil), b...)
	for _, c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.dropped.Add(1)
		}
	}
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		delete(h.clients, id)
		close(c.send)
	}
}
