package ws

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/oshokin/catpoint/internal/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	readLimit  = 512
)

// Handler upgrades requests to WebSocket and streams hub messages.
type Handler struct {
	hub      *StatusHub
	upgrader websocket.Upgrader
}

// NewHandler creates a handler for hub.
func NewHandler(hub *StatusHub) *Handler {
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The panel is served on a trusted LAN.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WarnKV(h.hub.ctx, "WebSocket upgrade failed", "error", err)
		return
	}

	c, err := h.hub.register()
	if err != nil {
		logger.ErrorKV(h.hub.ctx, "Failed to register status client", "error", err)
		_ = conn.Close()

		return
	}

	logger.DebugKV(h.hub.ctx, "Status client connected", "remote_addr", r.RemoteAddr)

	go h.writePump(conn, c)
	go h.readPump(conn, c)
}

// readPump discards client input and detects disconnection.
func (h *Handler) readPump(conn *websocket.Conn, c *client) {
	defer h.hub.unregister(c)

	conn.SetReadLimit(readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.DebugKV(h.hub.ctx, "Status client read error", "error", err)
			}

			return
		}
	}
}

// writePump is the only writer on conn.
func (h *Handler) writePump(conn *websocket.Conn, c *client) {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))

			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}

			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.hub.unregister(c)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))

			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.hub.unregister(c)
				return
			}
		}
	}
}
