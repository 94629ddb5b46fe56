// Package metrics holds the Prometheus collectors for the batch pipeline
// and the annotation store.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	BatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docdex",
			Name:      "batches_total",
			Help:      "Batch searches finished, by terminal state",
		},
		[]string{"state"},
	)

	BatchQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docdex",
			Name:      "batch_queries_total",
			Help:      "Batch queries executed, by outcome",
		},
		[]string{"outcome"}, // "ok" / "failed"
	)

	QueryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "docdex",
			Name:      "batch_query_duration_seconds",
			Help:      "Single batch query execution duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	DedupFilteredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "docdex",
			Name:      "dedup_filtered_total",
			Help:      "Hits suppressed by the dedup filter",
		},
	)

	AnnotationOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docdex",
			Name:      "annotation_ops_total",
			Help:      "Annotation store operations, by kind and effect",
		},
		[]string{"op", "changed"},
	)
)

var registered bool

// Register registers all collectors. Must be called once from main.
func Register() {
	if registered {
		return
	}
	prometheus.MustRegister(BatchesTotal)
	prometheus.MustRegister(BatchQueriesTotal)
	prometheus.MustRegister(QueryDuration)
	prometheus.MustRegister(DedupFilteredTotal)
	prometheus.MustRegister(AnnotationOpsTotal)
	registered = true
}
