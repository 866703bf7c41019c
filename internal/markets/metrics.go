package markets

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	ListRequestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polybot_markets_list_requests_total",
		Help: "Total number of successful market listing requests",
	})

	DetailRequestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polybot_markets_detail_requests_total",
		Help: "Total number of successful market detail requests",
	})

	MalformedMarketsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polybot_markets_malformed_total",
		Help: "Total number of listing entries dropped as malformed",
	})
)
