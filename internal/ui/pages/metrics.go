package pages

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// pageRendersTotal: счётчик рендеринга страниц по исходу.
	pageRendersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jb_page_renders_total",
			Help: "Total number of server-rendered pages by outcome",
		},
		[]string{"page", "outcome"},
	)

	// pageRenderDuration: длительность рендеринга страницы, включая prefetch.
	pageRenderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jb_page_render_duration_seconds",
			Help:    "Server-side page render duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"page"},
	)
)
