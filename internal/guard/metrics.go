package guard

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EvaluationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predictarb_guard_evaluations_total",
		Help: "Guard predicate evaluations",
	})

	ThrottledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predictarb_guard_throttled_total",
		Help: "Book updates dropped by the evaluation throttle",
	})

	TripsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predictarb_guard_trips_total",
		Help: "VALID to INVALID transitions",
	})

	DepthUnstableTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predictarb_guard_depth_unstable_total",
		Help: "Ghost-depth episodes detected",
	})
)
