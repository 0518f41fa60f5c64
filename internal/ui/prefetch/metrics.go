package prefetch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// prefetchTotal: счётчик серверных prefetch по запросу и исходу.
	prefetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jb_prefetch_total",
			Help: "Total number of server-side prefetches",
		},
		[]string{"query", "outcome"},
	)

	// prefetchDuration: длительность prefetch.
	prefetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jb_prefetch_duration_seconds",
			Help:    "Server-side prefetch duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"query"},
	)
)
