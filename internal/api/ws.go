package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/quantumalpha/backend/internal/contracts"
	"github.com/quantumalpha/backend/pkg/logger"
)

const writeWait = 10 * time.Second

// Hub pushes every completed cycle to connected websocket clients.
// Slow clients are pruned so a stuck consumer never blocks the broadcast.
type Hub struct {
	upgrader websocket.Upgrader
	results  <-chan *contracts.RankedResult
	logger   *logger.Logger

	register   chan *wsClient
	unregister chan *wsClient
	done       chan struct{}
	clients    map[*wsClient]struct{}
}

type wsClient struct {
	conn *websocket.Conn
	send chan *contracts.RankedResult
}

// NewHub creates the hub over a store subscription.
func NewHub(results <-chan *contracts.RankedResult, log *logger.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		results:    results,
		logger:     log,
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		done:       make(chan struct{}),
		clients:    make(map[*wsClient]struct{}),
	}
}

// Run is the hub loop. Blocks until ctx is cancelled. Closing done lets
// pumps blocked on register/unregister exit after the loop is gone.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				close(client.send)
				client.conn.Close()
			}
			return

		case client := <-h.register:
			h.clients[client] = struct{}{}
			h.logger.WithField("clients", len(h.clients)).Debug("Websocket client connected")

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}

		case result := <-h.results:
			for client := range h.clients {
				select {
				case client.send <- result:
				default:
					// Client too slow, drop it rather than block the hub.
					delete(h.clients, client)
					close(client.send)
				}
			}
		}
	}
}

// Handle upgrades the request and attaches the client to the hub
// GET /ws/results
func (h *Hub) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("Websocket upgrade failed")
		return
	}

	client := &wsClient{conn: conn, send: make(chan *contracts.RankedResult, 4)}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go h.writePump(client)
	go h.readPump(client)
}

// writePump pushes results to one client.
func (h *Hub) writePump(client *wsClient) {
	defer client.conn.Close()
	for result := range client.send {
		client.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := client.conn.WriteJSON(result); err != nil {
			return
		}
	}
}

// readPump discards inbound frames and detects the close handshake.
func (h *Hub) readPump(client *wsClient) {
	defer func() {
		select {
		case h.unregister <- client:
		case <-h.done:
		}
		client.conn.Close()
	}()
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}
