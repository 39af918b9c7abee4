// Package metrics метрики Prometheus для HTTP и жизненного цикла заданий.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "video_downloader"

var (
	// HTTPRequestsTotal количество HTTP-запросов по маршрутам.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		},
		[]string{"method", "path", "code"},
	)

	// HTTPRequestDuration длительность HTTP-запросов.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "code"},
	)

	// JobsCreated созданные задания.
	JobsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_created_total",
		Help:      "Download jobs accepted into the queue.",
	})

	// JobsFinished завершённые задания по итоговому статусу.
	JobsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_finished_total",
			Help:      "Download jobs that reached a terminal status.",
		},
		[]string{"status"},
	)

	// JobDuration время обработки задания воркером.
	JobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "job_duration_seconds",
		Help:      "Time from processing start to terminal status.",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 1800},
	})

	// QuotaRejections отказы по дневной квоте.
	QuotaRejections = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "quota_rejections_total",
		Help:      "Download requests rejected by the daily quota.",
	})

	// SweepJobs задания, обработанные фоновыми проходами.
	SweepJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_jobs_total",
			Help:      "Jobs touched by background sweeps.",
		},
		[]string{"action"},
	)

	// WebhookEvents события Stripe по типу и результату.
	WebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "Stripe webhook events by type and result.",
		},
		[]string{"type", "result"},
	)
)
