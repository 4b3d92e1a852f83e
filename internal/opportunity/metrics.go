package opportunity

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PlansBuiltTotal counts opportunities that survived enrichment.
var PlansBuiltTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "funding_arb_enricher_plans_built_total",
		Help: "Total executable plans produced by the enricher",
	},
)
