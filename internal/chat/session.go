package chat

import (
	"net"
	"sync"

	"github.com/google/uuid"
)

const sendBuffer = 64

// Session wraps one live client connection. Outbound lines go through a
// buffered channel drained by a single writer goroutine, so a slow or broken
// socket never blocks delivery to other sessions; a full buffer drops the
// line (delivery is best-effort).
type Session struct {
	ID   string
	Nick string // set once at negotiation, before the registry insert

	conn net.Conn
	send chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

// NewSession wraps conn and starts its writer pump.
func NewSession(conn net.Conn) *Session {
	s := &Session{
		ID:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
	go s.writePump()
	return s
}

func (s *Session) writePump() {
	for {
		select {
		case data := <-s.send:
			if _, err := s.conn.Write(data); err != nil {
				s.Close()
				return
			}
		case <-s.done:
			return
		}
	}
}

// SendLine queues one newline-terminated protocol line. Lines are silently
// dropped when the session is closed or its buffer is full.
func (s *Session) SendLine(line string) {
	select {
	case <-s.done:
		return
	default:
	}
	select {
	case s.send <- []byte(line + "\n"):
	default:
	}
}

// Close shuts the connection down exactly once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

// Done is closed when the session has been torn down.
func (s *Session) Done() <-chan struct{} { return s.done }
