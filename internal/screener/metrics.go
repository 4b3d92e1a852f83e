package screener

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// OpportunitiesTotal counts opportunities by pipeline stage.
var OpportunitiesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "funding_arb_screener_opportunities_total",
		Help: "Total opportunities by pipeline stage (scored, selected)",
	},
	[]string{"stage"},
)
