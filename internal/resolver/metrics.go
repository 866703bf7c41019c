package resolver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	ResolvedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polybot_resolver_positions_resolved_total",
		Help: "Total number of positions settled, by strategy",
	}, []string{"strategy"})

	RealizedPnLTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polybot_resolver_realized_pnl_usd",
		Help: "Cumulative realized P&L in USD since process start",
	})
)
