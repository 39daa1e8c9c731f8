package transport

import (
	"sync"

	"github.com/gorilla/websocket"
)

// WebSocketSocket adapts a *websocket.Conn to the Socket interface.
// Gorilla's own docs require at most one concurrent writer per
// connection; wMu serializes WriteEnvelope against the socketSink
// callbacks that can fire from the replica's queue goroutine while
// Serve's read loop is also live on the same connection.
type WebSocketSocket struct {
	conn *websocket.Conn
	wMu  sync.Mutex
}

// NewWebSocketSocket wraps an already-upgraded websocket connection.
func NewWebSocketSocket(conn *websocket.Conn) *WebSocketSocket {
	return &WebSocketSocket{conn: conn}
}

func (s *WebSocketSocket) ReadEnvelope() (envelope, error) {
	var env envelope
	if err := s.conn.ReadJSON(&env); err != nil {
		return envelope{}, err
	}
	return env, nil
}

func (s *WebSocketSocket) WriteEnvelope(env envelope) error {
	s.wMu.Lock()
	defer s.wMu.Unlock()
	return s.conn.WriteJSON(env)
}

func (s *WebSocketSocket) Close() error {
	return s.conn.Close()
}
