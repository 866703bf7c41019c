package risk

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	ValidationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polybot_risk_validations_total",
		Help: "Total number of signal validations, by result",
	}, []string{"result"})

	HaltedGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polybot_risk_halted",
		Help: "1 while trading is halted, 0 otherwise",
	})

	ConsecutiveFailuresGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polybot_risk_consecutive_failures",
		Help: "Current consecutive trade failure streak",
	})
)
