// Package realtime pushes server events to connected socket clients.
package realtime

import (
	"context"
	"sort"
	"sync"

	"github.com/kevinaaaquil/writeups/logging"
	"github.com/kevinaaaquil/writeups/metrics"
)

const (
	MessageTypePing = "ping"
	MessageTypePong = "pong"
)

// Message is the envelope of every frame sent or received on the socket.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub tracks connected clients and fans broadcasts out to them. Run or
// RunWithContext must be running for Register, Unregister and Publish to make progress.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex

	done     chan struct{}
	stopOnce sync.Once
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// RunWithContext serves hub events until ctx is done, then closes every client.
func (h *Hub) RunWithContext(ctx context.Context) error {
	log := logging.WithComponent("realtime")
	for {
		select {
		case <-ctx.Done():
			h.stopOnce.Do(func() { close(h.done) })
			n := h.ClientCount()
			h.closeAll()
			log.Info().Int("clients_closed", n).Msg("realtime hub stopped")
			return ctx.Err()

		case c := <-h.Register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			metrics.RealtimeClients.Set(float64(n))
			log.Debug().Int("total_clients", n).Str("user", c.principal.ID.Hex()).Msg("client connected")

		case c := <-h.Unregister:
			h.mu.Lock()
			if h.clients[c] {
				delete(h.clients, c)
				close(c.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			metrics.RealtimeClients.Set(float64(n))
			log.Debug().Int("total_clients", n).Msg("client disconnected")

		case m := <-h.broadcast:
			h.fanOut(m)
		}
	}
}

// Done is closed once the hub has stopped serving.
func (h *Hub) Done() <-chan struct{} { return h.done }

// register hands c to the running hub. It reports false once the hub has stopped.
func (h *Hub) register(c *Client) bool {
	select {
	case h.Register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) unregister(c *Client) {
	select {
	case h.Unregister <- c:
	case <-h.done:
	}
}

// Publish queues an event for every connected client. It never blocks; when
// the queue is full the event is dropped and logged.
func (h *Hub) Publish(eventType string, data interface{}) {
	select {
	case h.broadcast <- Message{Type: eventType, Data: data}:
		metrics.RealtimeBroadcasts.WithLabelValues(eventType).Inc()
	default:
		logging.WithComponent("realtime").Warn().Str("type", eventType).Msg("broadcast queue full, dropping event")
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) fanOut(m Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.sorted()
	for _, c := range clients {
		select {
		case c.send <- m:
		default:
			// slow consumer
			close(c.send)
			delete(h.clients, c)
		}
	}
	metrics.RealtimeClients.Set(float64(len(h.clients)))
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.sorted() {
		close(c.send)
		delete(h.clients, c)
	}
	metrics.RealtimeClients.Set(0)
}

// sorted returns clients in connection order. Caller holds mu.
func (h *Hub) sorted() []*Client {
	out := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}
