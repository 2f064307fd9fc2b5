package bookcache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predictarb_bookcache_hits_total",
		Help: "Reads served from a fresh entry",
	})

	StaleHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predictarb_bookcache_stale_hits_total",
		Help: "Reads served from an aging entry while a refresh runs",
	})

	MissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predictarb_bookcache_misses_total",
		Help: "Reads that blocked on a synchronous fetch",
	})

	FetchErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predictarb_bookcache_fetch_errors_total",
		Help: "Failed fetches, synchronous or background",
	})

	WSUpdatesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predictarb_bookcache_ws_updates_total",
		Help: "WS-sourced book observations stored",
	})
)
