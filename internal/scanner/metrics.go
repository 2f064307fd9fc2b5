package scanner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ScansTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predictarb_scanner_scans_total",
		Help: "Full scan passes",
	})

	ScanErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predictarb_scanner_errors_total",
		Help: "Book fetches that failed during a scan",
	})

	OpportunitiesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predictarb_scanner_opportunities_total",
		Help: "Candidates that cleared the profit margin",
	})
)
