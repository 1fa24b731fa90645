// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FeedRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_requests_total",
			Help: "Total number of ranked feed requests by resolution path",
		},
		[]string{"path"},
	)

	FeedRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "feed_request_duration_seconds",
			Help: "Duration of ranked feed requests in seconds",
		},
		[]string{"path"},
	)

	FeedReadFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_read_failures_total",
			Help: "Total number of degraded external reads by operation",
		},
		[]string{"operation"},
	)

	FeedCandidatesScored = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "feed_candidates_scored",
			Help:    "Number of candidates scored per local-path request",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)

	FeedEmptyResults = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feed_empty_results_total",
			Help: "Total number of feed requests that resolved to an empty list",
		},
	)
)
