package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	drainsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelgate_drains_total",
		Help: "Finished drains, by outcome.",
	}, []string{"outcome"})

	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelgate_operations_total",
		Help: "Media operations attempted, by track and result.",
	}, []string{"track", "result"})

	drainActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "reelgate_drain_active",
		Help: "1 while a drain is running.",
	})

	operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reelgate_operation_duration_seconds",
		Help:    "Media operation wall time, by track.",
		Buckets: []float64{1, 5, 15, 60, 300, 900, 1800, 3600, 7200, 14400},
	}, []string{"track"})
)
