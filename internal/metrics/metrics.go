package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatter_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatter_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// State gauges
	Rooms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatter_rooms",
			Help: "Rooms currently registered",
		},
	)

	Connections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatter_connections",
			Help: "Live signalling connections",
		},
	)

	Participants = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatter_participants",
			Help: "Seated participants across all rooms",
		},
	)

	// Business metrics
	MessagesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatter_messages_total",
			Help: "Total chat messages accepted",
		},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatter_notifications_total",
			Help: "Total join/leave notifications recorded",
		},
		[]string{"kind"}, // "join" or "leave"
	)

	JoinRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatter_join_rejected_total",
			Help: "Total rejected joins",
		},
		[]string{"reason"}, // "not_found" or "role_full"
	)

	RoomsDeleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatter_rooms_deleted_total",
			Help: "Total rooms deleted",
		},
		[]string{"reason"}, // "request", "expired" or "idle"
	)

	// Transport metrics
	BroadcastDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatter_broadcast_dropped_total",
			Help: "Frames not delivered because a send buffer was full",
		},
	)

	RateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatter_rate_limit_hits_total",
			Help: "Total inbound events rejected by the rate limiter",
		},
	)

	FeedErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatter_feed_errors_total",
			Help: "Total failed feed writes",
		},
		[]string{"op"},
	)

	FeedLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chatter_feed_latency_seconds",
			Help:    "Feed write latency",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05},
		},
	)
)
