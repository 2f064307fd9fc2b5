package task

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TasksSubmittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predictarb_task_submitted_total",
		Help: "Tasks that reached SUBMITTED",
	})

	TasksFinishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "predictarb_task_finished_total",
		Help: "Tasks by terminal status",
	}, []string{"status"})

	FillSharesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predictarb_task_fill_shares_total",
		Help: "Predict-venue shares observed filled",
	})

	HedgeSharesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predictarb_task_hedge_shares_total",
		Help: "Hedge-venue shares filled",
	})

	LossHedgeEntriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predictarb_task_loss_hedge_entries_total",
		Help: "Tasks that entered the loss-hedge escape",
	})

	TasksPausedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predictarb_task_paused_total",
		Help: "Task pauses triggered by hedge-venue stream loss",
	})

	StatusFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predictarb_task_status_failures_total",
		Help: "Failed predict-venue status polls",
	})
)
