package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	NotificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_created_total",
			Help: "Notification records persisted by the dispatcher",
		},
		[]string{"type"},
	)

	ChannelDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_channel_deliveries_total",
			Help: "Channel delivery outcomes per dispatch",
		},
		[]string{"channel", "status"},
	)

	ChannelSendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notification_channel_send_duration_seconds",
			Help:    "Time spent in a single channel send",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"channel"},
	)

	StreamConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notification_stream_connections",
			Help: "Open live notification streams",
		},
	)

	StreamEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_stream_events_total",
			Help: "Events written to live notification streams",
		},
		[]string{"event"},
	)

	StreamExits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_stream_exits_total",
			Help: "Live stream terminations by reason",
		},
		[]string{"reason"},
	)

	StreamPollErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notification_stream_poll_errors_total",
			Help: "Failed store polls from live streams",
		},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "notifier_circuit_breaker_state",
			Help: "Notifier breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"backend"},
	)

	UnreadCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_unread_cache_lookups_total",
			Help: "Unread-count cache lookups by result",
		},
		[]string{"result"},
	)
)
