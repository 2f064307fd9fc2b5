package websocket

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveConnections is 1 while the market stream is up.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "predictarb_ws_active_connections",
		Help: "Whether the hedge venue market stream is connected",
	})

	// SubscriptionCount tracks distinct subscribed tokens.
	SubscriptionCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "predictarb_ws_subscriptions",
		Help: "Number of distinct tokens subscribed on the market stream",
	})

	// MessagesReceivedTotal counts received stream messages by type.
	MessagesReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "predictarb_ws_messages_received_total",
			Help: "Total market stream messages received",
		},
		[]string{"event_type"},
	)

	// MessagesDroppedTotal counts messages dropped on a full buffer.
	MessagesDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predictarb_ws_messages_dropped_total",
		Help: "Total market stream messages dropped due to backpressure",
	})

	// ReconnectAttemptsTotal counts reconnection attempts.
	ReconnectAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predictarb_ws_reconnect_attempts_total",
		Help: "Total reconnection attempts",
	})

	// ReconnectFailuresTotal counts failed reconnection attempts.
	ReconnectFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predictarb_ws_reconnect_failures_total",
		Help: "Total failed reconnection attempts",
	})
)
