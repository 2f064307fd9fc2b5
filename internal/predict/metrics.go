package predict

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersSubmittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predictarb_predict_orders_submitted_total",
		Help: "Orders accepted by the predict venue",
	})

	OrdersCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predictarb_predict_orders_cancelled_total",
		Help: "Cancel requests acknowledged by the predict venue",
	})

	StatusPollsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predictarb_predict_status_polls_total",
		Help: "Successful order status polls",
	})

	BooksFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predictarb_predict_books_fetched_total",
		Help: "Orderbooks fetched over REST",
	})

	FillEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predictarb_predict_fill_events_total",
		Help: "OrderFilled events decoded for our account",
	})

	EventStreamReconnectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predictarb_predict_event_stream_reconnects_total",
		Help: "Reconnect attempts of the on-chain fill stream",
	})

	AuthRefreshesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predictarb_predict_auth_refreshes_total",
		Help: "JWT refreshes against the predict venue",
	})
)
