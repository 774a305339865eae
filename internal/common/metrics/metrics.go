// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RendersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fra_renders_total",
			Help: "Total number of FRA renders by rendition and outcome",
		},
		[]string{"rendition", "status"},
	)

	RenderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fra_render_duration_seconds",
			Help:    "Duration of FRA renders in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"rendition"},
	)

	AssetResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fra_asset_resolutions_total",
			Help: "Photo resolutions by outcome",
		},
		[]string{"status"},
	)

	OverlayWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fra_overlay_writes_total",
			Help: "Custom-data overlay writes by outcome",
		},
		[]string{"status"},
	)

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
)
