package storage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SavesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predictarb_storage_saves_total",
		Help: "Task summaries persisted",
	})

	SaveErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predictarb_storage_save_errors_total",
		Help: "Task summary writes that failed",
	})
)
