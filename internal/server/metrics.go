package server

import (
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	queries      *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	recordErrors prometheus.Counter
	returned     prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "itemwatch_record_queries_total",
			Help: "Record queries by database and result code.",
		}, []string{"database", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "itemwatch_record_query_duration_seconds",
			Help:    "Time spent answering record queries.",
			Buckets: prometheus.DefBuckets,
		}, []string{"database"}),
		recordErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "itemwatch_record_errors_total",
			Help: "Records returned as per-record errors.",
		}),
		returned: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "itemwatch_records_returned",
			Help:    "Records returned per query.",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 200},
		}),
	}
	reg.MustRegister(m.queries, m.duration, m.recordErrors, m.returned)
	return m
}
