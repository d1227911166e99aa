package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Analysis metrics
var (
	// AnalysisRequestsTotal tracks suitability analysis requests by outcome
	AnalysisRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fairweather",
			Name:      "analysis_requests_total",
			Help:      "Total number of suitability analysis requests",
		},
		[]string{"status"},
	)

	// AnalysisDuration tracks end-to-end analysis latency
	AnalysisDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fairweather",
			Name:      "analysis_duration_seconds",
			Help:      "Duration of suitability analysis requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// AnalysisModelUsage tracks whether scored days used trained models
	AnalysisModelUsage = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fairweather",
			Name:      "analysis_days_scored_total",
			Help:      "Days scored, labelled by whether a trained model was consulted",
		},
		[]string{"model_used"},
	)
)

// Training metrics
var (
	// TrainingRunsTotal tracks training runs by outcome
	TrainingRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fairweather",
			Name:      "training_runs_total",
			Help:      "Total number of training runs",
		},
		[]string{"status"},
	)

	// TrainingDuration tracks how long a full training run takes
	TrainingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fairweather",
			Name:      "training_duration_seconds",
			Help:      "Duration of training runs in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	// TrainingQueueDropsTotal counts schedule requests dropped on a full queue
	TrainingQueueDropsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fairweather",
			Name:      "training_queue_drops_total",
			Help:      "Training requests dropped because the queue was full",
		},
	)
)

// Upstream metrics
var (
	// UpstreamRequestsTotal tracks calls to external weather providers
	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fairweather",
			Name:      "upstream_requests_total",
			Help:      "Total number of upstream provider requests",
		},
		[]string{"provider", "status"},
	)

	// HistoryCacheHitsTotal tracks local history cache hits vs misses
	HistoryCacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fairweather",
			Name:      "history_cache_lookups_total",
			Help:      "History store lookups by result",
		},
		[]string{"result"},
	)

	// AppStartTime records when the application started
	AppStartTime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "fairweather",
			Name:      "app_start_time_seconds",
			Help:      "Unix timestamp of when the application started",
		},
	)
)

func init() {
	AppStartTime.SetToCurrentTime()
}

// RecordAnalysis records one analysis request.
func RecordAnalysis(duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	AnalysisRequestsTotal.WithLabelValues(status).Inc()
	AnalysisDuration.Observe(duration.Seconds())
}

// RecordTrainingRun records one training run.
func RecordTrainingRun(duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	TrainingRunsTotal.WithLabelValues(status).Inc()
	TrainingDuration.Observe(duration.Seconds())
}

// RecordUpstream records one provider call.
func RecordUpstream(provider string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	UpstreamRequestsTotal.WithLabelValues(provider, status).Inc()
}
