package registry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TasksCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predictarb_registry_tasks_created_total",
		Help: "Tasks accepted by the registry",
	})

	CreateRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predictarb_registry_create_rejected_total",
		Help: "Task creations rejected (validation, duplicate, live-order clash)",
	})

	TasksActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "predictarb_registry_tasks_active",
		Help: "Tasks whose run loop has not finished",
	})

	CancelsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predictarb_registry_cancels_total",
		Help: "Cancel requests issued",
	})

	SubscriberDropsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predictarb_registry_subscriber_drops_total",
		Help: "Snapshot updates dropped on slow subscribers",
	})
)
