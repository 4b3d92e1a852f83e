package websocket

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveSessions tracks live stream sessions by name.
	ActiveSessions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "funding_arb_ws_active_sessions",
			Help: "Whether a stream session currently holds a live socket",
		},
		[]string{"stream"},
	)

	// MessagesReceivedTotal counts frames received by stream.
	MessagesReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "funding_arb_ws_messages_received_total",
			Help: "Total WebSocket frames received",
		},
		[]string{"stream"},
	)

	// ReconnectAttemptsTotal counts reconnection attempts.
	ReconnectAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "funding_arb_ws_reconnect_attempts_total",
		Help: "Total WebSocket reconnection attempts",
	})

	// ReconnectFailuresTotal counts failed reconnection attempts.
	ReconnectFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "funding_arb_ws_reconnect_failures_total",
		Help: "Total failed WebSocket reconnection attempts",
	})
)
