package ws

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"triple-triad-server/auth"
	"triple-triad-server/matchmaking"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow all origins for development; restrict in production.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub maintains the set of active clients and hands their requests to the registry.
type Hub struct {
	Clients    map[*Client]bool
	Register   chan *Client
	Unregister chan *Client
	Registry   *matchmaking.Registry
	Auth       *auth.Verifier // nil when auth is disabled

	// ctx scopes the hub: Run stops, registry calls made for clients are
	// bound to it, and register/unregister give up once it is done.
	ctx context.Context
}

// NewHub creates a new Hub that lives until ctx is done.
func NewHub(ctx context.Context, reg *matchmaking.Registry, verifier *auth.Verifier) *Hub {
	return &Hub{
		Clients:    make(map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Registry:   reg,
		Auth:       verifier,
		ctx:        ctx,
	}
}

// Run starts the hub's main loop. Should be run as a goroutine.
// When the hub's ctx is cancelled (e.g. on server shutdown), Run returns and no longer accepts new registrations.
func (h *Hub) Run() {
	for {
		select {
		case <-h.ctx.Done():
			slog.Info("shutdown signal received, stopping", "tag", "hub")
			return
		case client := <-h.Register:
			h.Clients[client] = true
			slog.Info("client connected", "tag", "hub", "clients", len(h.Clients))

		case client := <-h.Unregister:
			if _, ok := h.Clients[client]; ok {
				delete(h.Clients, client)
				// Stop event delivery before closing Send.
				h.Registry.UnsubscribeAll(client)
				close(client.Send)
				slog.Info("client disconnected", "tag", "hub", "clients", len(h.Clients), "user", client.UserID)
			}
		}
	}
}

// ServeWS handles WebSocket upgrade requests and creates a new Client.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("WebSocket upgrade error", "tag", "hub", "err", err)
		return
	}

	client := &Client{
		Hub:  h,
		Conn: conn,
		Send: make(chan []byte, 256),
	}

	if !h.register(client) {
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}

// register hands c to Run. It reports false once the hub has shut down.
func (h *Hub) register(c *Client) bool {
	select {
	case h.Register <- c:
		return true
	case <-h.ctx.Done():
		return false
	}
}

// unregister hands c to Run. Once the hub has shut down it only detaches c
// from the registry.
func (h *Hub) unregister(c *Client) {
	select {
	case h.Unregister <- c:
	case <-h.ctx.Done():
		h.Registry.UnsubscribeAll(c)
	}
}
