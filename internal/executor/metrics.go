package executor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TradesTotal counts coordinator runs by terminal outcome.
	TradesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "funding_arb_coordinator_trades_total",
			Help: "Coordinator runs by outcome",
		},
		[]string{"outcome"},
	)

	// OrdersPlacedTotal counts paired order submissions per venue.
	OrdersPlacedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "funding_arb_coordinator_orders_total",
			Help: "Orders submitted by the coordinator per venue",
		},
		[]string{"venue"},
	)
)
