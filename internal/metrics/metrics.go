// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Recognitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "presence",
		Name:      "recognitions_total",
		Help:      "Recognition events by outcome.",
	}, []string{"outcome"})

	RecognizeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "presence",
		Name:      "recognize_duration_seconds",
		Help:      "Latency of calls to the face recognition service.",
		Buckets:   prometheus.DefBuckets,
	})

	Compensations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "presence",
		Name:      "enrollment_compensations_total",
		Help:      "Compensating actions run after a failed enrollment step.",
	}, []string{"action", "result"})

	CleanupTasks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "presence",
		Name:      "cleanup_tasks_total",
		Help:      "Best-effort cleanup tasks by type and result.",
	}, []string{"type", "result"})
)

// Result maps an error onto a metric label.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
