package websocket

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/llebout/random-imgur-wall/internal/metrics"
)

const (
	writeDeadline = 5 * time.Second
	pingInterval  = 30 * time.Second
	pongDeadline  = 60 * time.Second
)

// session owns one viewer connection: the bounded outbound queue and the
// writer goroutine draining it. The hub enqueues into sendCh; nothing else
// touches the connection from the write side.
type session struct {
	id           uuid.UUID
	conn         *websocket.Conn
	clock        clockwork.Clock
	sendCh       chan []byte
	doneCh       chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup
	onWriteError func()
}

// newSession wraps conn and starts the writer goroutine. onWriteError is
// called (once, from the writer goroutine) when a write or ping fails, so the
// hub can drop the session.
func newSession(id uuid.UUID, conn *websocket.Conn, clock clockwork.Clock, queueSize int, onWriteError func()) *session {
	s := &session{
		id:           id,
		conn:         conn,
		clock:        clock,
		sendCh:       make(chan []byte, queueSize),
		doneCh:       make(chan struct{}),
		onWriteError: onWriteError,
	}
	s.configurePongHandler()
	s.wg.Add(1)
	go s.run()
	return s
}

func (s *session) run() {
	ticker := s.clock.NewTicker(pingInterval)
	defer ticker.Stop()
	defer s.wg.Done()

	for {
		select {
		case msg := <-s.sendCh:
			start := s.clock.Now()
			s.updateWriteDeadline()
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.fail()
				return
			}
			metrics.WallMessageSendDuration.Observe(s.clock.Since(start).Seconds())
		case <-ticker.Chan():
			s.updateWriteDeadline()
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				// ping failed, viewer likely disconnected
				metrics.WallPingFailures.Inc()
				s.fail()
				return
			}
		case <-s.doneCh:
			return
		}
	}
}

func (s *session) fail() {
	if s.onWriteError != nil {
		s.onWriteError()
	}
}

// stop tears the session down: exactly once, regardless of how many paths
// race to it.
func (s *session) stop() {
	s.stopOnce.Do(func() {
		close(s.doneCh)
		_ = s.conn.Close()
	})
	s.wg.Wait()
}

// stopGraceful sends a close frame with reason before closing the connection.
func (s *session) stopGraceful(reason string) {
	s.stopOnce.Do(func() {
		// Stop the writer goroutine first so the close frame is not written
		// concurrently with a broadcast message.
		close(s.doneCh)
		s.wg.Wait()

		closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
		s.updateWriteDeadline()
		_ = s.conn.WriteMessage(websocket.CloseMessage, closeMsg)
		_ = s.conn.Close()
	})
}

func (s *session) configurePongHandler() {
	s.updateReadDeadline()
	s.conn.SetPongHandler(func(string) error {
		s.updateReadDeadline()
		return nil
	})
}

func (s *session) updateWriteDeadline() {
	_ = s.conn.SetWriteDeadline(s.clock.Now().Add(writeDeadline))
}

func (s *session) updateReadDeadline() {
	_ = s.conn.SetReadDeadline(s.clock.Now().Add(pongDeadline))
}
