package journal

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// TradesJournaledTotal counts trade records durably persisted.
var TradesJournaledTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "funding_arb_journal_trades_total",
		Help: "Total completed trades written to the journal",
	},
)
