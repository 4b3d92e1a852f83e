package venue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts REST calls by venue and outcome.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "funding_arb_venue_requests_total",
			Help: "Total venue REST calls by outcome",
		},
		[]string{"venue", "outcome"},
	)

	// OrdersPlacedTotal counts order placements by venue and status.
	OrdersPlacedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "funding_arb_venue_orders_placed_total",
			Help: "Total orders placed by venue and terminal status",
		},
		[]string{"venue", "status"},
	)
)
