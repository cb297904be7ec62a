// internal/common/metrics/metrics.go
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	CompletionRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dominion_completion_requests_total",
			Help: "Completion calls by task category and outcome",
		},
		[]string{"category", "outcome"},
	)

	CompletionFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dominion_completion_failures_total",
			Help: "Failed completion calls by task category and failure kind",
		},
		[]string{"category", "failure_kind"},
	)

	CompletionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dominion_completion_duration_seconds",
			Help:    "Latency of completion calls in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"category"},
	)

	RateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dominion_rate_limit_rejections_total",
			Help: "Completion calls refused by the outbound rate limiter",
		},
		[]string{"category"},
	)
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// ObserveCompletion records one completion call. An empty failureKind means success.
func ObserveCompletion(category, failureKind string, elapsed time.Duration) {
	outcome := OutcomeSuccess
	if failureKind != "" {
		outcome = OutcomeFailure
		CompletionFailures.WithLabelValues(category, failureKind).Inc()
	}
	CompletionRequests.WithLabelValues(category, outcome).Inc()
	CompletionDuration.WithLabelValues(category).Observe(elapsed.Seconds())
}
