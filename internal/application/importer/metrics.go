package importer

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	rowsTotal          *prometheus.CounterVec
	batchesTotal       *prometheus.CounterVec
	postalLookupsTotal *prometheus.CounterVec
	normalizerTotal    *prometheus.CounterVec
	batchDuration      prometheus.Histogram
}

var metricsSingleton = sync.OnceValue(func() *metrics {
	return &metrics{
		rowsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "school_import",
			Name:      "rows_total",
			Help:      "Source rows processed, by outcome.",
		}, []string{"outcome"}),
		batchesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "school_import",
			Name:      "batches_total",
			Help:      "Batch invocations, by result.",
		}, []string{"result"}),
		postalLookupsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "school_import",
			Name:      "postal_lookups_total",
			Help:      "Postal code lookups, by result (hit, found, not_found, error).",
		}, []string{"result"}),
		normalizerTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "school_import",
			Name:      "normalizer_calls_total",
			Help:      "Text normalizer calls, by result (ok, fallback).",
		}, []string{"result"}),
		batchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "school_import",
			Name:      "batch_duration_seconds",
			Help:      "Wall time of one batch invocation.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}),
	}
})

func getMetrics() *metrics {
	return metricsSingleton()
}
