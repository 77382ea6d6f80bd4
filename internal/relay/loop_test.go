package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llebout/random-imgur-wall/internal/domain"
	"github.com/llebout/random-imgur-wall/internal/imgur"
)

// fakeSource replays one scripted result per poll cycle.
type fakeSource struct {
	mu     sync.Mutex
	cycles []pollResult
	polls  int
	polled chan struct{}
}

type pollResult struct {
	refs []domain.ImageRef
	err  error
}

func newFakeSource(cycles ...pollResult) *fakeSource {
	return &fakeSource{cycles: cycles, polled: make(chan struct{}, 16)}
}

func (f *fakeSource) Poll(_ context.Context) ([]domain.ImageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	cycle := pollResult{}
	if f.polls < len(f.cycles) {
		cycle = f.cycles[f.polls]
	}
	f.polls++
	f.polled <- struct{}{}
	return cycle.refs, cycle.err
}

// fakeWall records broadcast payloads.
type fakeWall struct {
	mu       sync.Mutex
	messages [][]byte
}

func (f *fakeWall) Broadcast(data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, data)
}

func (f *fakeWall) ViewerCount() int { return 0 }

func (f *fakeWall) recorded() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.messages...)
}

func runLoop(t *testing.T, source domain.Source, wall domain.Wall, clock clockwork.Clock) context.CancelFunc {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		NewLoop(source, wall, clock, 5*time.Second).Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return cancel
}

func waitForPoll(t *testing.T, source *fakeSource) {
	t.Helper()
	select {
	case <-source.polled:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a poll cycle")
	}
}

func TestLoop_BroadcastsEachImageInOrder(t *testing.T) {
	source := newFakeSource(pollResult{refs: []domain.ImageRef{
		{ID: "A", URL: "https://i.imgur.com/A.jpg"},
		{ID: "B", URL: "https://i.imgur.com/B.jpg"},
	}})
	wall := &fakeWall{}
	clock := clockwork.NewFakeClock()

	runLoop(t, source, wall, clock)
	waitForPoll(t, source)

	require.Eventually(t, func() bool { return len(wall.recorded()) == 2 }, time.Second, time.Millisecond)

	var first, second domain.WallMessage
	msgs := wall.recorded()
	require.NoError(t, json.Unmarshal(msgs[0], &first))
	require.NoError(t, json.Unmarshal(msgs[1], &second))

	assert.Equal(t, domain.WallMessage{Type: "new", ID: "A", URL: "https://i.imgur.com/A.jpg"}, first)
	assert.Equal(t, domain.WallMessage{Type: "new", ID: "B", URL: "https://i.imgur.com/B.jpg"}, second)
}

func TestLoop_PollsImmediatelyThenOnInterval(t *testing.T) {
	source := newFakeSource()
	wall := &fakeWall{}
	clock := clockwork.NewFakeClock()

	runLoop(t, source, wall, clock)

	// First cycle runs without any clock advance
	waitForPoll(t, source)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	clock.BlockUntilContext(ctx, 1)
	clock.Advance(5 * time.Second)
	waitForPoll(t, source)

	clock.Advance(5 * time.Second)
	waitForPoll(t, source)
}

func TestLoop_FailedCycleIsSkippedAndLoopContinues(t *testing.T) {
	source := newFakeSource(
		pollResult{err: fmt.Errorf("%w: connection refused", imgur.ErrSourceUnavailable)},
		pollResult{refs: []domain.ImageRef{{ID: "C", URL: "https://i.imgur.com/C.jpg"}}},
	)
	wall := &fakeWall{}
	clock := clockwork.NewFakeClock()

	runLoop(t, source, wall, clock)

	waitForPoll(t, source)
	assert.Empty(t, wall.recorded(), "no broadcast on a failed cycle")

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	clock.BlockUntilContext(ctx, 1)
	clock.Advance(5 * time.Second)
	waitForPoll(t, source)

	require.Eventually(t, func() bool { return len(wall.recorded()) == 1 }, time.Second, time.Millisecond)
}

func TestLoop_MalformedCycleIsSkipped(t *testing.T) {
	source := newFakeSource(
		pollResult{err: fmt.Errorf("%w: invalid character '<'", imgur.ErrSourceMalformed)},
	)
	wall := &fakeWall{}
	clock := clockwork.NewFakeClock()

	runLoop(t, source, wall, clock)
	waitForPoll(t, source)

	assert.Empty(t, wall.recorded())
}

func TestLoop_CancellationStopsPolling(t *testing.T) {
	source := newFakeSource()
	wall := &fakeWall{}
	clock := clockwork.NewFakeClock()

	cancel := runLoop(t, source, wall, clock)
	waitForPoll(t, source)

	cancel()
	// Give the loop a moment to observe cancellation, then tick; no further
	// polls may happen.
	time.Sleep(50 * time.Millisecond)
	clock.Advance(5 * time.Second)

	select {
	case <-source.polled:
		t.Fatal("loop polled after cancellation")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestLoop_ZeroViewersCycleIsHarmless(t *testing.T) {
	source := newFakeSource(pollResult{refs: []domain.ImageRef{
		{ID: "A", URL: "https://i.imgur.com/A.jpg"},
		{ID: "B", URL: "https://i.imgur.com/B.jpg"},
	}})
	wall := &fakeWall{}
	clock := clockwork.NewFakeClock()

	runLoop(t, source, wall, clock)
	waitForPoll(t, source)

	// Messages were handed to the wall with nobody connected; nothing fails.
	require.Eventually(t, func() bool { return len(wall.recorded()) == 2 }, time.Second, time.Millisecond)
}
