package source

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultOK    = "ok"
	resultError = "error"
)

var (
	sourceFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "subfeed_source_fetches_total",
		Help: "Per-channel page fetches by result",
	}, []string{"result"})

	sourceFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "subfeed_source_fetch_duration_seconds",
		Help:    "Time taken to fetch and filter one channel page",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	videosFiltered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "subfeed_videos_filtered_total",
		Help: "Videos dropped for being shorter than the minimum length",
	})
)
