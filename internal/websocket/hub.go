package websocket

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/llebout/random-imgur-wall/internal/metrics"
)

const (
	cmdChannelSize = 256
	commandTimeout = 5 * time.Second
	stopTimeout    = 10 * time.Second
)

// --- Command types ---

type hubCmd interface{ hubCmd() }

type cmdRegister struct {
	conn  *websocket.Conn
	reply chan registerResult
}

func (cmdRegister) hubCmd() {}

type registerResult struct {
	id  uuid.UUID
	err error
}

type cmdUnregister struct {
	id uuid.UUID
}

func (cmdUnregister) hubCmd() {}

type cmdBroadcast struct {
	data []byte
}

func (cmdBroadcast) hubCmd() {}

type cmdViewerCount struct {
	reply chan int
}

func (cmdViewerCount) hubCmd() {}

type cmdStop struct{}

func (cmdStop) hubCmd() {}

// --- Hub ---

// Hub is the broadcast registry: the authoritative set of live viewer
// sessions. A single actor goroutine owns the session map; all public
// methods are safe from any goroutine and serialize on the command channel.
type Hub struct {
	cmdCh      chan hubCmd
	clock      clockwork.Clock
	sessions   map[uuid.UUID]*session
	queueSize  int
	maxViewers int
	done       chan struct{}
}

// NewHub creates a hub and starts its actor goroutine. queueSize bounds each
// viewer's outbound queue; maxViewers caps concurrent registrations.
func NewHub(clock clockwork.Clock, queueSize, maxViewers int) *Hub {
	h := &Hub{
		cmdCh:      make(chan hubCmd, cmdChannelSize),
		clock:      clock,
		sessions:   make(map[uuid.UUID]*session),
		queueSize:  queueSize,
		maxViewers: maxViewers,
		done:       make(chan struct{}),
	}
	go h.run()
	return h
}

// Register wraps conn in a new viewer session and adds it to the registry.
// It fails only when the viewer cap is reached, in which case conn is closed.
func (h *Hub) Register(conn *websocket.Conn) (uuid.UUID, error) {
	reply := make(chan registerResult, 1)
	select {
	case h.cmdCh <- cmdRegister{conn: conn, reply: reply}:
	case <-h.done:
		conn.Close()
		return uuid.Nil, fmt.Errorf("hub stopped")
	}

	// Timeout guard so a stuck hub cannot block the connection handler forever
	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case res := <-reply:
		return res.id, res.err
	case <-timer.Chan():
		return uuid.Nil, fmt.Errorf("register command timed out after %v", commandTimeout)
	}
}

// Unregister removes a viewer session. Idempotent; no-op for unknown ids.
func (h *Hub) Unregister(id uuid.UUID) {
	select {
	case h.cmdCh <- cmdUnregister{id: id}:
	case <-h.done:
	}
}

// Broadcast enqueues data to every registered viewer, non-blocking per
// viewer. Viewers whose queue is full are unregistered and their connection
// closed before the command completes; the caller is never delayed by a
// slow viewer.
func (h *Hub) Broadcast(data []byte) {
	select {
	case h.cmdCh <- cmdBroadcast{data: data}:
	case <-h.done:
	}
}

// ViewerCount returns the number of registered viewers.
// Returns -1 if the command times out, 0 after the hub has stopped.
func (h *Hub) ViewerCount() int {
	reply := make(chan int, 1)
	select {
	case h.cmdCh <- cmdViewerCount{reply: reply}:
	case <-h.done:
		return 0
	}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case count := <-reply:
		return count
	case <-timer.Chan():
		slog.Warn("ViewerCount timed out", "timeout", commandTimeout)
		return -1
	}
}

// Stop shuts the hub down, closing every viewer connection.
// Blocks until the actor goroutine has exited or the stop timeout is reached.
func (h *Hub) Stop() {
	select {
	case h.cmdCh <- cmdStop{}:
	case <-h.done:
		return
	}

	timer := h.clock.NewTimer(stopTimeout)
	defer timer.Stop()

	select {
	case <-h.done:
		slog.Info("Hub stopped gracefully")
	case <-timer.Chan():
		slog.Warn("Hub stop timeout exceeded", "timeout", stopTimeout)
		metrics.WallStopTimeouts.Inc()
	}
}

func (h *Hub) run() {
	defer close(h.done)

	for cmd := range h.cmdCh {
		switch c := cmd.(type) {
		case cmdRegister:
			h.handleRegister(c)
		case cmdUnregister:
			h.handleUnregister(c.id)
		case cmdBroadcast:
			h.handleBroadcast(c.data)
		case cmdViewerCount:
			c.reply <- len(h.sessions)
		case cmdStop:
			h.handleStop()
			return
		}
	}
}

func (h *Hub) handleRegister(c cmdRegister) {
	if len(h.sessions) >= h.maxViewers {
		slog.Warn("Rejecting viewer: viewer cap reached", "max_viewers", h.maxViewers)
		metrics.WallViewersRejected.Inc()
		c.conn.Close()
		c.reply <- registerResult{err: fmt.Errorf("viewer cap (%d) reached", h.maxViewers)}
		return
	}

	id := uuid.New()
	sess := newSession(id, c.conn, h.clock, h.queueSize, func() {
		h.scheduleUnregister(id)
	})
	h.sessions[id] = sess

	metrics.WallConnectedViewers.Set(float64(len(h.sessions)))
	slog.Debug("Viewer registered", "viewer_id", id.String(), "total_viewers", len(h.sessions))
	c.reply <- registerResult{id: id}
}

func (h *Hub) handleUnregister(id uuid.UUID) {
	sess, exists := h.sessions[id]
	if !exists {
		return
	}

	sess.stop()
	delete(h.sessions, id)

	metrics.WallConnectedViewers.Set(float64(len(h.sessions)))
	slog.Debug("Viewer unregistered", "viewer_id", id.String(), "remaining_viewers", len(h.sessions))
}

func (h *Hub) handleBroadcast(data []byte) {
	var slow []uuid.UUID
	for id, sess := range h.sessions {
		select {
		case sess.sendCh <- data:
		default:
			// queue full, viewer is too slow to keep up
			slow = append(slow, id)
		}
	}

	for _, id := range slow {
		slog.Warn("Disconnecting slow viewer", "viewer_id", id.String())
		metrics.WallSlowViewersEvicted.Inc()
		h.handleUnregister(id)
	}
}

func (h *Hub) handleStop() {
	slog.Info("Hub shutting down", "viewers", len(h.sessions))

	for id, sess := range h.sessions {
		sess.stopGraceful("server shutting down")
		delete(h.sessions, id)
	}
	metrics.WallConnectedViewers.Set(0)
}

// scheduleUnregister queues an unregister from a session's writer goroutine
// without blocking it on a busy or stopped hub.
func (h *Hub) scheduleUnregister(id uuid.UUID) {
	go func() {
		select {
		case h.cmdCh <- cmdUnregister{id: id}:
		case <-h.done:
		}
	}()
}
