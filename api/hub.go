package api

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/khaledhikmat/ws-go/model"
	"github.com/khaledhikmat/ws-go/service/lgr"
	"github.com/khaledhikmat/ws-go/service/metrics"
)

type subscription struct {
	conn *websocket.Conn
	user model.UserIdentity
}

// Hub tracks open stats websockets so they can be counted and closed on shutdown.
// Each connection's writes stay with its handler goroutine.
type Hub struct {
	clients    map[*websocket.Conn]model.UserIdentity
	register   chan subscription
	unregister chan *websocket.Conn
	done       chan struct{}
	mutex      sync.RWMutex
	metrics    *metrics.Metrics
}

func NewHub(m *metrics.Metrics) *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]model.UserIdentity),
		register:   make(chan subscription),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		metrics:    m,
	}
}

// Run serves register/unregister requests until ctx ends, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for conn := range h.clients {
				delete(h.clients, conn)
				conn.Close()
			}
			h.mutex.Unlock()
			h.metrics.WebsocketClients.Store(0)
			return

		case s := <-h.register:
			h.mutex.Lock()
			h.clients[s.conn] = s.user
			total := len(h.clients)
			h.mutex.Unlock()
			h.metrics.WebsocketClients.Store(int64(total))
			lgr.Logger.Info("stats client connected", slog.String("user", string(s.user)), slog.Int("total", total))

		case conn := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			total := len(h.clients)
			h.mutex.Unlock()
			h.metrics.WebsocketClients.Store(int64(total))
			lgr.Logger.Info("stats client disconnected", slog.Int("total", total))
		}
	}
}

// Register reports false once the hub has shut down; the caller then owns conn.
func (h *Hub) Register(conn *websocket.Conn, user model.UserIdentity) bool {
	select {
	case h.register <- subscription{conn: conn, user: user}:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(conn *websocket.Conn) {
	select {
	case h.unregister <- conn:
	case <-h.done:
		conn.Close()
	}
}

func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Done is closed after Run has closed every client.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}
