package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HitsTotal counts cache hits.
	HitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predictarb_cache_hits_total",
		Help: "Total number of cache hits",
	})

	// MissesTotal counts cache misses.
	MissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predictarb_cache_misses_total",
		Help: "Total number of cache misses",
	})

	// SetsTotal counts accepted cache writes.
	SetsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predictarb_cache_sets_total",
		Help: "Total number of cache sets",
	})
)
