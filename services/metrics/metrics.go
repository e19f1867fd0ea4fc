package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AuthzDenials = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classroom_authz_denials_total",
			Help: "Total number of denied classroom requests",
		},
		[]string{"reason"}, // unauthenticated | forbidden
	)

	HierarchyAnomalies = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "classroom_hierarchy_anomalies_total",
			Help: "Total number of ambiguous path hierarchies detected",
		},
	)

	MarksGraded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classroom_marks_graded_total",
			Help: "Total number of marks created or re-graded",
		},
		[]string{"op"}, // create | update
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)
)
