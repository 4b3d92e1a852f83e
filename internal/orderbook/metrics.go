package orderbook

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UpdatesAppliedTotal counts applied book mutations by kind.
	UpdatesAppliedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "funding_arb_orderbook_updates_applied_total",
			Help: "Total order book mutations applied, by kind",
		},
		[]string{"kind"},
	)

	// ResetsTotal counts book clears (stream errors, sequence gaps).
	ResetsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "funding_arb_orderbook_resets_total",
		Help: "Total order book resets",
	})

	// SequenceGapsTotal counts detected depth sequence gaps.
	SequenceGapsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "funding_arb_orderbook_sequence_gaps_total",
		Help: "Total depth stream sequence gaps that forced a resync",
	})
)
