package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Pipeline metrics
	PipelineRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_pipeline_runs_total",
			Help: "Total number of pipeline runs",
		},
		[]string{"mode", "status"}, // mode: daily|weekly|quick, status: completed|error
	)

	PipelineDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sentinel_pipeline_duration_seconds",
			Help:    "Full pipeline execution duration in seconds",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"mode"},
	)

	// Stage metrics
	StageExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_stage_executions_total",
			Help: "Total number of stage executions",
		},
		[]string{"stage", "status"}, // status: success|soft_error
	)

	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sentinel_stage_duration_seconds",
			Help:    "Stage execution duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"stage"},
	)

	StageItemsPersisted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_stage_items_persisted_total",
			Help: "Total records persisted per stage",
		},
		[]string{"stage"},
	)

	StageItemsSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_stage_items_skipped_total",
			Help: "Total items dropped by validation per stage",
		},
		[]string{"stage"},
	)

	// Provider metrics
	CompletionCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_completion_calls_total",
			Help: "Total completion API calls",
		},
		[]string{"model", "status"}, // status: success|error|rate_limited
	)

	CompletionLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sentinel_completion_latency_seconds",
			Help:    "Completion API latency in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"model"},
	)

	CompletionTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_completion_tokens_total",
			Help: "Total tokens consumed by completion calls",
		},
		[]string{"model"},
	)

	SearchCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_search_calls_total",
			Help: "Total search API calls",
		},
		[]string{"kind", "status"}, // kind: news|search, status: success|error
	)

	// Alert metrics
	AlertsGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_alerts_generated_total",
			Help: "Total alerts produced by evaluation",
		},
		[]string{"source", "impact"},
	)

	NotificationsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_notifications_sent_total",
			Help: "Total notifications delivered",
		},
		[]string{"kind", "status"}, // kind: digest|alert
	)

	// Worker metrics
	WorkerExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_worker_executions_total",
			Help: "Total number of worker executions",
		},
		[]string{"worker", "status"}, // status: success|error
	)

	WorkerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sentinel_worker_duration_seconds",
			Help:    "Worker execution duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 600},
		},
		[]string{"worker"},
	)

	WorkerLastRun = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sentinel_worker_last_run_timestamp",
			Help: "Unix timestamp of last worker execution",
		},
		[]string{"worker"},
	)
)

// Init registers all metrics with Prometheus
func Init() {
	prometheus.MustRegister(PipelineRuns)
	prometheus.MustRegister(PipelineDuration)

	prometheus.MustRegister(StageExecutions)
	prometheus.MustRegister(StageDuration)
	prometheus.MustRegister(StageItemsPersisted)
	prometheus.MustRegister(StageItemsSkipped)

	prometheus.MustRegister(CompletionCalls)
	prometheus.MustRegister(CompletionLatency)
	prometheus.MustRegister(CompletionTokens)
	prometheus.MustRegister(SearchCalls)

	prometheus.MustRegister(AlertsGenerated)
	prometheus.MustRegister(NotificationsSent)

	prometheus.MustRegister(WorkerExecutions)
	prometheus.MustRegister(WorkerDuration)
	prometheus.MustRegister(WorkerLastRun)
}

// Handler returns Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordPipelineRun records a full pipeline execution
func RecordPipelineRun(mode, status string, duration time.Duration) {
	PipelineRuns.WithLabelValues(mode, status).Inc()
	PipelineDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// RecordStage records a stage execution with its item counts
func RecordStage(stage string, duration time.Duration, persisted, skipped int, softErr bool) {
	status := "success"
	if softErr {
		status = "soft_error"
	}
	StageExecutions.WithLabelValues(stage, status).Inc()
	StageDuration.WithLabelValues(stage).Observe(duration.Seconds())
	StageItemsPersisted.WithLabelValues(stage).Add(float64(persisted))
	StageItemsSkipped.WithLabelValues(stage).Add(float64(skipped))
}

// RecordCompletion records a completion API call
func RecordCompletion(model string, latency time.Duration, tokens int, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	CompletionCalls.WithLabelValues(model, status).Inc()
	CompletionLatency.WithLabelValues(model).Observe(latency.Seconds())
	if tokens > 0 {
		CompletionTokens.WithLabelValues(model).Add(float64(tokens))
	}
}

// RecordSearch records a search API call
func RecordSearch(kind string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	SearchCalls.WithLabelValues(kind, status).Inc()
}

// RecordAlert records a generated alert
func RecordAlert(source, impact string) {
	AlertsGenerated.WithLabelValues(source, impact).Inc()
}

// RecordNotification records a notification delivery attempt
func RecordNotification(kind string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	NotificationsSent.WithLabelValues(kind, status).Inc()
}

// RecordWorkerExecution records a worker execution
func RecordWorkerExecution(worker string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	WorkerExecutions.WithLabelValues(worker, status).Inc()
	WorkerDuration.WithLabelValues(worker).Observe(duration.Seconds())
	WorkerLastRun.WithLabelValues(worker).SetToCurrentTime()
}
