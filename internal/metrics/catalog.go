package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ftcatalog"

// Catalog Prometheus metrics.
var (
	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Total number of catalog queries",
		},
		[]string{"plan", "status"},
	)

	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Catalog query duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"plan"},
	)

	QueryHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_results_total",
			Help:      "Total number of records returned by queries",
		},
	)

	IngestRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_requests_total",
			Help:      "Total number of create/update/delete requests",
		},
		[]string{"op", "status"},
	)

	IngestRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_records_total",
			Help:      "Total number of records created, updated or deleted",
		},
		[]string{"op"},
	)

	IngestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_duration_seconds",
			Help:      "Create/update/delete duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"op"},
	)

	CommitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commits_total",
			Help:      "Total number of visibility commits",
		},
		[]string{"status"},
	)

	CommittedRecordsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "committed_records_total",
			Help:      "Total number of deferred records made visible",
		},
	)

	PendingRecords = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_records",
			Help:      "Deferred writes awaiting a commit",
		},
	)
)

var registerOnce sync.Once

// Register registers every catalog and HTTP metric with the default
// registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			QueriesTotal, QueryDuration, QueryHitsTotal,
			IngestRequestsTotal, IngestRecordsTotal, IngestDuration,
			CommitsTotal, CommittedRecordsTotal, PendingRecords,
			adminRequestDuration, adminRequestsInFlight,
		)
	})
}
