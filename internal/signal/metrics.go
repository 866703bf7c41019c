package signal

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	SnapshotsProcessedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polybot_signal_snapshots_processed_total",
		Help: "Total number of market snapshots run through the detectors",
	})

	SignalsEmittedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polybot_signal_signals_emitted_total",
		Help: "Total number of trade signals emitted, by strategy",
	}, []string{"strategy"})

	SignalsDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polybot_signal_signals_dropped_total",
		Help: "Total number of signals dropped because the signal queue was full",
	})
)
