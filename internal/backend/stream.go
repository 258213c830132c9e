package backend

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gorilla/websocket"
)

// Stream dials the backend's WebSocket endpoint. It satisfies the
// coordinator's FrameSource contract; the coordinator owns reconnect policy,
// Stream only knows how to open one connection and pump its frames.
type Stream struct {
	url    string
	dialer *websocket.Dialer
}

// NewStream creates a stream client for the given ws:// or wss:// URL.
func NewStream(url string) *Stream {
	return &Stream{url: url, dialer: websocket.DefaultDialer}
}

// Connect opens the socket. The returned connection's Frames channel carries
// raw text frames and closes when the socket closes, for whatever reason.
func (s *Stream) Connect(ctx context.Context) (*StreamConn, error) {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", s.url, err)
	}

	sc := &StreamConn{conn: conn, frames: make(chan []byte, 64)}
	go sc.readLoop()
	go func() {
		// A cancelled context tears the socket down, which ends readLoop.
		<-ctx.Done()
		conn.Close()
	}()
	return sc, nil
}

// StreamConn is one live upstream socket.
type StreamConn struct {
	conn   *websocket.Conn
	frames chan []byte
}

// Frames returns the inbound frame channel. It is closed on disconnect.
func (c *StreamConn) Frames() <-chan []byte {
	return c.frames
}

// Close tears the socket down. Idempotent.
func (c *StreamConn) Close() error {
	return c.conn.Close()
}

func (c *StreamConn) readLoop() {
	defer close(c.frames)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			slog.Debug("Upstream socket closed", "error", err, "component", "Stream")
			return
		}
		c.frames <- data
	}
}
