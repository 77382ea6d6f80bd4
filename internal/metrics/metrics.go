package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Wall metrics
var (
	// WallConnectedViewers tracks the number of currently connected viewers
	WallConnectedViewers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wall_connected_viewers",
			Help: "Number of currently connected wall viewers",
		},
	)

	// WallBroadcastsTotal tracks messages fanned out to the wall
	WallBroadcastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wall_broadcasts_total",
			Help: "Total broadcasts fanned out to the wall by message type",
		},
		[]string{"type"},
	)

	// WallSlowViewersEvicted tracks viewers disconnected for a full queue
	WallSlowViewersEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wall_slow_viewers_evicted_total",
			Help: "Total viewers disconnected because their outbound queue was full",
		},
	)

	// WallViewersRejected tracks registrations refused at the viewer cap
	WallViewersRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wall_viewers_rejected_total",
			Help: "Total viewer registrations refused because the viewer cap was reached",
		},
	)

	// WallMessageSendDuration tracks websocket write latency in seconds
	WallMessageSendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wall_message_send_duration_seconds",
			Help:    "WebSocket message write duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	// WallPingFailures tracks keepalive ping write failures
	WallPingFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wall_ping_failures_total",
			Help: "Total keepalive ping failures (viewer likely disconnected)",
		},
	)

	// WallStopTimeouts tracks hub shutdowns that exceeded the stop timeout
	WallStopTimeouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wall_stop_timeouts_total",
			Help: "Total hub shutdowns that exceeded the stop timeout",
		},
	)
)

// Image source metrics
var (
	// SourcePollsTotal tracks upstream gallery polls by outcome
	SourcePollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_polls_total",
			Help: "Total upstream gallery polls by outcome (ok/unavailable/malformed)",
		},
		[]string{"status"},
	)

	// SourcePollDuration tracks upstream poll latency in seconds
	SourcePollDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "source_poll_duration_seconds",
			Help:    "Upstream gallery poll duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	// SourceImagesNew tracks images accepted as previously unseen
	SourceImagesNew = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "source_images_new_total",
			Help: "Total gallery images accepted as previously unseen",
		},
	)

	// SourceImagesDuplicate tracks images dropped by the recent-set filter
	SourceImagesDuplicate = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "source_images_duplicate_total",
			Help: "Total gallery images dropped as recently shown",
		},
	)
)
