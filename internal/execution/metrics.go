package execution

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polybot_execution_trades_total",
		Help: "Total number of trade executions, by strategy and result",
	}, []string{"strategy", "result"})

	ExecutionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polybot_execution_duration_seconds",
		Help:    "Wall time of a trade execution from placement to persistence",
		Buckets: prometheus.DefBuckets,
	})
)
