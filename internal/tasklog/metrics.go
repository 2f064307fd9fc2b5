package tasklog

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsWrittenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predictarb_tasklog_events_written_total",
		Help: "Records appended to JSONL files",
	})

	FlushesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predictarb_tasklog_flushes_total",
		Help: "Queue flushes",
	})

	DropsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predictarb_tasklog_drops_total",
		Help: "Events dropped on queue overflow",
	})

	EvictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predictarb_tasklog_evictions_total",
		Help: "Lower-priority events evicted by critical ones",
	})
)
