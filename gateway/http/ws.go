package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/c360/rulegate/engine"
)

const (
	// Time allowed to write an event to a client before giving up on it
	writeWait = 5 * time.Second

	// Per-client buffer; a client this far behind is disconnected
	clientBuffer = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The events endpoint carries no sensitive payload and no commands;
	// origin policy is left to the deployment's proxy layer.
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// eventHub broadcasts RulesDefined events to connected websocket clients.
type eventHub struct {
	logger *slog.Logger

	mu      sync.Mutex
	clients map[*websocket.Conn]chan []byte
}

func newEventHub(logger *slog.Logger) *eventHub {
	return &eventHub{
		logger:  logger,
		clients: make(map[*websocket.Conn]chan []byte),
	}
}

func (h *eventHub) clientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// broadcast queues the event for every connected client. Slow clients are
// dropped rather than allowed to stall the engine's notification path.
func (h *eventHub) broadcast(event engine.RulesDefinedEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("Event encoding failed", "event_id", event.EventID, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, send := range h.clients {
		select {
		case send <- payload:
		default:
			h.logger.Warn("Dropping slow event client", "remote", conn.RemoteAddr().String())
			delete(h.clients, conn)
			close(send)
		}
	}
}

func (h *eventHub) add(conn *websocket.Conn) chan []byte {
	send := make(chan []byte, clientBuffer)
	h.mu.Lock()
	h.clients[conn] = send
	h.mu.Unlock()
	return send
}

func (h *eventHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	if send, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		close(send)
	}
	h.mu.Unlock()
}

func (h *eventHub) closeAll() {
	h.mu.Lock()
	for conn, send := range h.clients {
		delete(h.clients, conn)
		close(send)
		_ = conn.Close()
	}
	h.mu.Unlock()
}

// handleEvents upgrades the connection and streams RulesDefined events
// until the client disconnects.
func (g *Gateway) handleEvents(w http.ResponseWriter, r *http.Request) {
	g.requestsTotal.Add(1)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response
		g.requestsFailed.Add(1)
		g.logger.Warn("Websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	g.requestsSuccess.Add(1)

	send := g.hub.add(conn)
	g.logger.Debug("Event client connected", "remote", conn.RemoteAddr().String())

	// Reader goroutine: we never expect client messages, but reading is
	// required to observe close frames.
	go func() {
		defer g.hub.remove(conn)
		defer func() { _ = conn.Close() }()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for payload := range send {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			g.hub.remove(conn)
			_ = conn.Close()
			return
		}
	}
}
