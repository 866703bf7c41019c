package scanner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	MarketsScannedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polybot_scanner_markets_scanned_total",
		Help: "Total number of markets returned by the broad scan",
	})

	SnapshotsEnqueuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polybot_scanner_snapshots_enqueued_total",
		Help: "Total number of market snapshots pushed onto the market queue",
	})

	SnapshotsDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polybot_scanner_snapshots_dropped_total",
		Help: "Total number of snapshots dropped because the market queue was full",
	})

	WatchlistSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polybot_scanner_watchlist_size",
		Help: "Number of markets currently on the late-market watch-list",
	})
)
