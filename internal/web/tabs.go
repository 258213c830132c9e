package web

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"vitalvest/internal/coordinator"
)

const tabWriteTimeout = 10 * time.Second

// handleTabSocket upgrades a dashboard tab to a WebSocket and bridges it to
// a coordinator port. One tab, one port; the coordinator stays oblivious to
// HTTP.
func (s *Server) handleTabSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Tab socket upgrade failed", "error", err, "component", "Web")
		return
	}

	port := coordinator.NewPort()
	s.coord.Register(port)
	slog.Debug("Tab connected", "port", port.ID, "remote", r.RemoteAddr, "component", "Web")

	go s.tabWriteLoop(conn, port)
	s.tabReadLoop(conn, port)
}

// tabReadLoop decodes tab commands and forwards them to the coordinator.
// Returning unregisters the port, which makes the write loop exit too.
func (s *Server) tabReadLoop(conn *websocket.Conn, port *coordinator.Port) {
	defer func() {
		s.coord.Unregister(port)
		conn.Close()
		slog.Debug("Tab disconnected", "port", port.ID, "component", "Web")
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var cmd coordinator.Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			slog.Warn("Ignoring malformed tab command", "port", port.ID, "error", err, "component", "Web")
			continue
		}
		s.coord.Send(port, cmd)
	}
}

// tabWriteLoop copies coordinator broadcasts onto the tab socket until the
// port is closed.
func (s *Server) tabWriteLoop(conn *websocket.Conn, port *coordinator.Port) {
	defer conn.Close()
	for msg := range port.Messages() {
		conn.SetWriteDeadline(time.Now().Add(tabWriteTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	// Port closed by the coordinator (eviction or shutdown).
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(time.Second))
}
