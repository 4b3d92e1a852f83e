package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHitsTotal counts cache hits.
	CacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "funding_arb_cache_hits_total",
		Help: "Total cache hits",
	})

	// CacheMissesTotal counts cache misses.
	CacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "funding_arb_cache_misses_total",
		Help: "Total cache misses",
	})

	// CacheSetsTotal counts cache writes.
	CacheSetsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "funding_arb_cache_sets_total",
		Help: "Total cache writes",
	})
)
