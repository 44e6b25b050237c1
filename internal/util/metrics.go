package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PipelineRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_runs_total",
		Help: "Total number of orchestrator runs by final status",
	}, []string{"status"})

	PipelineRunsSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_runs_skipped_total",
		Help: "Total number of scheduled runs skipped because the run lock was held",
	})

	StepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pipeline_step_duration_seconds",
		Help:    "Duration of individual step attempts",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 180, 600},
	}, []string{"step", "status"})

	StepAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_step_attempts_total",
		Help: "Total number of step attempts",
	}, []string{"step"})

	StepRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_step_retries_total",
		Help: "Total number of step retries after a failed attempt",
	}, []string{"step"})

	StepFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_step_failures_total",
		Help: "Total number of steps that exhausted their retries",
	}, []string{"step", "reason"})

	RowsLoadedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_rows_loaded_total",
		Help: "Total number of rows written per schema and table",
	}, []string{"schema", "table"})

	RowsDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_rows_dropped_total",
		Help: "Total number of rows dropped by business rules",
	}, []string{"table", "reason"})

	FactRowsExcluded = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "warehouse_fact_rows_excluded",
		Help: "Transaction items without a resolvable dimension in the latest warehouse load",
	})

	QualityScore = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "data_quality_score",
		Help: "Overall score of the latest quality gate run",
	})

	AnalyticsQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "analytics_query_latency_seconds",
		Help:    "Latency of analytical queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	FilesCleanedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cleanup_files_deleted_total",
		Help: "Total number of expired files removed by the retention sweep",
	})

	AlertsRaisedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_alerts_total",
		Help: "Total number of alerts raised",
	}, []string{"severity", "check"})

	PipelineHealthScore = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pipeline_health_score",
		Help: "Overall health score of the latest monitor run",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
