package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "foodcost"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code.",
		},
		[]string{"route", "method", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	TrackedFactsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tracked_facts_total",
			Help:      "Facts accepted by the collector, by kind.",
		},
		[]string{"kind"},
	)

	TrackRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "track_rejected_total",
			Help:      "Beacon payloads rejected by validation.",
		},
	)

	ReportDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "report_duration_seconds",
			Help:      "Time to fetch and aggregate one analytics report.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	ReportRows = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "report_rows",
			Help:      "Rows read per report, by fact kind.",
			Buckets:   prometheus.ExponentialBuckets(10, 4, 8),
		},
		[]string{"kind"},
	)
)

// Register adds every collector to reg.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		TrackedFactsTotal,
		TrackRejectedTotal,
		ReportDuration,
		ReportRows,
	)
}
