package exchange

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	OrderbookRequestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polybot_exchange_orderbook_requests_total",
		Help: "Total number of successful orderbook fetches",
	})

	OrdersPlacedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polybot_exchange_orders_placed_total",
		Help: "Total number of orders accepted by the exchange",
	})

	OrdersCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polybot_exchange_orders_cancelled_total",
		Help: "Total number of orders cancelled",
	})

	APIErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polybot_exchange_api_errors_total",
		Help: "Total number of exchange API failures",
	})
)
