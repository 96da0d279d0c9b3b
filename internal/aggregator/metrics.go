package aggregator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	aggregationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "subfeed_aggregation_duration_seconds",
		Help:    "Time taken to build one aggregated feed page, including the fan-out",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms .. ~40s
	})

	aggregationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "subfeed_aggregation_failures_total",
		Help: "Number of feed pages that failed while merging",
	})
)
