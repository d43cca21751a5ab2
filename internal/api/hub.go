package api

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const (
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
)

// Hub fans out broadcast messages to every connected WebSocket client.
type Hub struct {
	logger  *slog.Logger
	mu      sync.Mutex
	clients map[*websocket.Conn]chan []byte
	closeCh chan struct{}
}

// NewHub constructs an idle hub; call Run to start its dispatch loop.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[*websocket.Conn]chan []byte),
		closeCh: make(chan struct{}),
	}
}

// ServeWS upgrades an HTTP request to a WebSocket connection and registers
// it with the hub.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	out := make(chan []byte, 16)
	h.mu.Lock()
	h.clients[conn] = out
	h.mu.Unlock()

	go h.writeLoop(conn, out)
	go h.readLoop(conn)
}

func (h *Hub) writeLoop(conn *websocket.Conn, out chan []byte) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer h.remove(conn)

	for {
		select {
		case <-h.closeCh:
			return
		case msg, ok := <-out:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) readLoop(conn *websocket.Conn) {
	defer h.remove(conn)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	if out, ok := h.clients[conn]; ok {
		close(out)
		delete(h.clients, conn)
	}
	h.mu.Unlock()
	_ = conn.Close()
}

// Broadcast sends msg to every connected client, dropping it for any
// client whose outbound buffer is full rather than blocking the round that
// triggered the broadcast.
func (h *Hub) Broadcast(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, out := range h.clients {
		select {
		case out <- msg:
		default:
			h.logger.Warn("dropping websocket message for slow client")
			_ = conn.Close()
		}
	}
}

// Run is a no-op event loop placeholder kept for symmetry with the
// teacher's hub shape; connection handling is driven entirely by ServeWS's
// per-connection goroutines.
func (h *Hub) Run() {
	<-h.closeCh
}

// Close disconnects all clients and stops Run.
func (h *Hub) Close() {
	close(h.closeCh)
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, out := range h.clients {
		close(out)
		_ = conn.Close()
		delete(h.clients, conn)
	}
}
