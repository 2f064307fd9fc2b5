package polymarket

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersSubmittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predictarb_polymarket_orders_submitted_total",
		Help: "Orders accepted by the hedge venue",
	})

	BooksFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predictarb_polymarket_books_fetched_total",
		Help: "Orderbooks fetched over REST",
	})
)
