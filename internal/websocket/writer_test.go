package websocket

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_WritesQueuedMessagesInOrder(t *testing.T) {
	server, client := newTestConnPair(t)

	sess := newSession(uuid.New(), server, clockwork.NewRealClock(), 8, nil)
	t.Cleanup(func() { sess.stop() })

	sess.sendCh <- []byte("one")
	sess.sendCh <- []byte("two")
	sess.sendCh <- []byte("three")

	client.SetReadDeadline(time.Now().Add(time.Second))
	for _, want := range []string{"one", "two", "three"} {
		_, msg, err := client.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, want, string(msg))
	}
}

func TestSession_StopIsIdempotent(t *testing.T) {
	server, _ := newTestConnPair(t)

	sess := newSession(uuid.New(), server, clockwork.NewRealClock(), 8, nil)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess.stop()
		}()
	}
	wg.Wait()
}

func TestSession_StopGracefulSendsCloseFrame(t *testing.T) {
	server, client := newTestConnPair(t)

	sess := newSession(uuid.New(), server, clockwork.NewRealClock(), 8, nil)
	sess.stopGraceful("server shutting down")

	client.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err := client.ReadMessage()
	require.Error(t, err)
	assert.True(t, ws.IsCloseError(err, ws.CloseNormalClosure), "expected normal closure, got: %v", err)
}

func TestSession_WriteErrorTriggersCallback(t *testing.T) {
	server, client := newTestConnPair(t)
	client.Close()

	failed := make(chan struct{}, 1)
	sess := newSession(uuid.New(), server, clockwork.NewRealClock(), 8, func() {
		failed <- struct{}{}
	})
	t.Cleanup(func() { sess.stop() })

	// Break the connection from under the writer, then enqueue
	server.Close()
	sess.sendCh <- []byte("doomed")

	select {
	case <-failed:
	case <-time.After(2 * time.Second):
		t.Fatal("write error callback was not invoked")
	}
}

func TestSession_PingFailureTriggersCallback(t *testing.T) {
	fakeClock := clockwork.NewFakeClock()
	server, client := newTestConnPair(t)
	client.Close()

	failed := make(chan struct{}, 1)
	sess := newSession(uuid.New(), server, fakeClock, 8, func() {
		failed <- struct{}{}
	})
	t.Cleanup(func() { sess.stop() })

	server.Close()
	// Fire the keepalive ticker; the ping write must fail on the dead conn
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	fakeClock.BlockUntilContext(ctx, 1)
	fakeClock.Advance(pingInterval)

	select {
	case <-failed:
	case <-time.After(2 * time.Second):
		t.Fatal("ping failure callback was not invoked")
	}
}
