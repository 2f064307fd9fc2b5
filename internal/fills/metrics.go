package fills

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsAbsorbedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predictarb_fills_events_absorbed_total",
		Help: "On-chain fill events absorbed by aggregators",
	})

	DuplicateEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predictarb_fills_duplicate_events_total",
		Help: "Fill events discarded as duplicates",
	})

	UnroutedEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predictarb_fills_unrouted_events_total",
		Help: "Fill events with no registered order handler",
	})
)
