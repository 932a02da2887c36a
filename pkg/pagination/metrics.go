package pagination

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pageLoadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feed_page_loads_total",
		Help: "Total page loads by kind, source and result",
	}, []string{"kind", "source", "result"})

	pageLoadDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "feed_page_load_duration_seconds",
		Help:    "Page load duration in seconds by kind",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
	}, []string{"kind"})

	auxResolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feed_aux_resolutions_total",
		Help: "Total auxiliary resource resolutions by result",
	}, []string{"result"})

	supersededResultsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feed_superseded_results_total",
		Help: "Total results discarded because a newer generation started",
	})
)
