package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait    = 5 * time.Second
	pingInterval = 30 * time.Second
	// A peer that answers neither pings nor sends traffic for three ping
	// intervals is treated as gone.
	pongWait       = 3 * pingInterval
	outboundQueue  = 64
	maxMessageSize = 4096
)

// Session wraps one websocket connection with a buffered write pump. Send is
// non-blocking: when the queue is full the frame is dropped and the room
// keeps ticking, which is the documented behavior for slow consumers.
type Session struct {
	id   string
	conn *websocket.Conn

	out    chan []byte
	closed chan struct{}
	once   sync.Once
}

func newSession(id string, conn *websocket.Conn) *Session {
	s := &Session{
		id:     id,
		conn:   conn,
		out:    make(chan []byte, outboundQueue),
		closed: make(chan struct{}),
	}
	go s.writePump()
	return s
}

// ID returns the connection identifier.
func (s *Session) ID() string { return s.id }

// Send queues a frame for delivery. Reports false when the frame was dropped
// because the session is closed or its queue is full.
func (s *Session) Send(data []byte) bool {
	select {
	case <-s.closed:
		return false
	default:
	}
	select {
	case s.out <- data:
		return true
	default:
		return false
	}
}

// Close shuts the write pump down. Idempotent.
func (s *Session) Close() {
	s.once.Do(func() { close(s.closed) })
}

// writePump serializes all writes onto one goroutine, the only safe way to
// share a gorilla connection between the reader and the room broadcaster.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()
	for {
		select {
		case <-s.closed:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			s.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case data := <-s.out:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.Close()
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.Close()
				return
			}
		}
	}
}
