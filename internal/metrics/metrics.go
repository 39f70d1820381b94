// Package metrics provides Prometheus metrics for merges and the daemon.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MergesTotal tracks merge attempts by kind and outcome
	MergesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "amyq",
			Subsystem: "merge",
			Name:      "total",
			Help:      "Total number of merge attempts by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	// MergeDuration tracks merge duration in seconds
	MergeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "amyq",
			Subsystem: "merge",
			Name:      "duration_seconds",
			Help:      "Duration of merges in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"kind"},
	)

	// RelationRowsTotal tracks rows handled by the reattacher
	RelationRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "amyq",
			Subsystem: "merge",
			Name:      "relation_rows_total",
			Help:      "Rows handled while reattaching relations, by disposition",
		},
		[]string{"kind", "relation", "disposition"},
	)

	// IntegrityFailuresTotal tracks children skipped because of constraint violations
	IntegrityFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "amyq",
			Subsystem: "merge",
			Name:      "integrity_failures_total",
			Help:      "Children skipped during reattachment because a constraint rejected them",
		},
		[]string{"kind", "relation"},
	)

	// LockContentionTotal tracks merges rejected because a record was locked
	LockContentionTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "amyq",
			Subsystem: "lock",
			Name:      "contention_total",
			Help:      "Lock acquisitions rejected because the key was held",
		},
		[]string{"kind"},
	)

	// NotificationsTotal tracks post-commit notifications by status
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "amyq",
			Subsystem: "notify",
			Name:      "total",
			Help:      "Post-commit merge notifications by status",
		},
		[]string{"status"},
	)

	// HTTPRequestsTotal tracks daemon requests
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "amyq",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of daemon HTTP requests",
		},
		[]string{"method", "route", "status_code"},
	)

	// HTTPRequestDuration tracks daemon request latency
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "amyq",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of daemon HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)
