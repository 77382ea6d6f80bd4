package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	gws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/llebout/random-imgur-wall/internal/domain"
	"github.com/llebout/random-imgur-wall/internal/errors"
	"github.com/llebout/random-imgur-wall/internal/logging"
	"github.com/llebout/random-imgur-wall/internal/metrics"
)

var upgrader = gws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // the wall is public, any origin may watch
	},
}

// handleWebSocket upgrades the connection, registers the viewer, and runs the
// read pump until the peer goes away. Inbound frames are discarded; reading
// exists only to detect disconnects and keep pong handling alive.
func (s *Server) handleWebSocket(c echo.Context) error {
	if !gws.IsWebSocketUpgrade(c.Request()) {
		return errors.ValidationError("websocket upgrade required")
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote its own error response
		slog.Debug("WebSocket upgrade failed", "error", err)
		return nil
	}

	id, err := s.hub.Register(conn)
	if err != nil {
		// Connection already closed by the hub; the response is hijacked,
		// so there is nothing left to write.
		slog.Warn("Viewer registration refused", "error", err)
		return nil
	}

	logger := logging.WithViewer(id.String())
	logger.Debug("Viewer connected", "remote_addr", conn.RemoteAddr().String())

	s.broadcastViewerCount()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.hub.Unregister(id)
	logger.Debug("Viewer disconnected")
	s.broadcastViewerCount()

	return nil
}

// broadcastViewerCount announces the current viewer count to everyone.
// Best-effort: on a stopped or stuck hub it does nothing.
func (s *Server) broadcastViewerCount() {
	count := s.hub.ViewerCount()
	if count < 0 {
		return
	}
	data, err := json.Marshal(domain.NewViewersMessage(count))
	if err != nil {
		slog.Error("Failed to marshal viewers message", "error", err)
		return
	}
	s.hub.Broadcast(data)
	metrics.WallBroadcastsTotal.WithLabelValues(domain.MessageTypeViewers).Inc()
}
