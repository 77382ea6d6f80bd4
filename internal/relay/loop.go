package relay

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/llebout/random-imgur-wall/internal/domain"
	"github.com/llebout/random-imgur-wall/internal/imgur"
	"github.com/llebout/random-imgur-wall/internal/metrics"
)

// Loop drives the fetch → dedup → broadcast cycle: it is the only writer
// that initiates image broadcasts and never blocks waiting on a viewer.
type Loop struct {
	source   domain.Source
	wall     domain.Wall
	clock    clockwork.Clock
	interval time.Duration
}

func NewLoop(source domain.Source, wall domain.Wall, clock clockwork.Clock, interval time.Duration) *Loop {
	return &Loop{
		source:   source,
		wall:     wall,
		clock:    clock,
		interval: interval,
	}
}

// Run polls immediately, then once per interval until ctx is cancelled.
// Cycle failures are logged and skipped; they never terminate the loop.
func (l *Loop) Run(ctx context.Context) {
	ticker := l.clock.NewTicker(l.interval)
	defer ticker.Stop()

	l.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			l.cycle(ctx)
		}
	}
}

func (l *Loop) cycle(ctx context.Context) {
	refs, err := l.source.Poll(ctx)
	if err != nil {
		switch {
		case errors.Is(err, imgur.ErrSourceMalformed):
			slog.Warn("Skipping cycle: upstream response malformed", "error", err)
		default:
			slog.Warn("Skipping cycle: upstream unavailable", "error", err)
		}
		return
	}

	for _, ref := range refs {
		data, err := json.Marshal(domain.NewImageMessage(ref))
		if err != nil {
			slog.Error("Failed to marshal image message", "image_id", ref.ID, "error", err)
			continue
		}
		l.wall.Broadcast(data)
		metrics.WallBroadcastsTotal.WithLabelValues(domain.MessageTypeNew).Inc()
	}

	if len(refs) > 0 {
		slog.Debug("Relayed new images", "count", len(refs), "viewers", l.wall.ViewerCount())
	}
}
