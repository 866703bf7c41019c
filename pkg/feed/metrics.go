package feed

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	MessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polybot_feed_messages_total",
		Help: "Total number of ticker messages recorded",
	})

	ReconnectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polybot_feed_reconnects_total",
		Help: "Total number of feed reconnect attempts",
	})

	ConnectedGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polybot_feed_connected",
		Help: "Whether the spot feed connection is up (1) or down (0)",
	})
)
