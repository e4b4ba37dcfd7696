package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pipeline metrics
	RequestsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "floyd_chat_requests_started_total",
			Help: "Total number of chat pipeline invocations",
		},
		[]string{"endpoint"},
	)

	RequestsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "floyd_chat_requests_completed_total",
			Help: "Total number of chat pipeline completions",
		},
		[]string{"endpoint", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "floyd_chat_request_duration_seconds",
			Help:    "End-to-end chat pipeline duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// Stage metrics
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "floyd_stage_duration_seconds",
			Help:    "Per-stage duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	StageFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "floyd_stage_failures_total",
			Help: "Total number of stage-local failures",
		},
		[]string{"stage", "reason"},
	)

	// Synthesizer call policy metrics
	SynthesisAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "floyd_synthesis_attempts_total",
			Help: "Total number of completion attempts during answer synthesis",
		},
	)

	SynthesisRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "floyd_synthesis_retries_total",
			Help: "Total number of retried completion attempts",
		},
	)

	// Grounding metrics
	AnswersUngrounded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "floyd_answers_ungrounded_total",
			Help: "Total number of answers replaced by the grounding fallback",
		},
	)

	CitationsChecked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "floyd_citations_checked_total",
			Help: "Total number of citation tags validated",
		},
	)

	// Retrieval metrics
	SearchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "floyd_search_requests_total",
			Help: "Total number of search service requests",
		},
		[]string{"mode", "status"},
	)

	SearchLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "floyd_search_latency_seconds",
			Help:    "Search service latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"mode"},
	)

	DocumentsDiscarded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "floyd_documents_discarded_total",
			Help: "Total number of retrieved documents below the relevance cutoff",
		},
	)

	// LLM client metrics
	CompletionRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "floyd_completion_requests_total",
			Help: "Total number of completion service requests",
		},
		[]string{"model", "status"},
	)

	CompletionLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "floyd_completion_latency_seconds",
			Help:    "Completion service latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"model"},
	)

	// Rewrite cache metrics
	RewriteCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "floyd_rewrite_cache_hits_total",
			Help: "Total number of query-rewrite cache hits",
		},
	)

	RewriteCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "floyd_rewrite_cache_misses_total",
			Help: "Total number of query-rewrite cache misses",
		},
	)
)

// RecordStage records one stage execution.
func RecordStage(stage string, durationSeconds float64) {
	StageDuration.WithLabelValues(stage).Observe(durationSeconds)
}

// RecordStageFailure records a stage-local failure with its reason.
func RecordStageFailure(stage, reason string) {
	StageFailures.WithLabelValues(stage, reason).Inc()
}

// RecordSearch records one search request.
func RecordSearch(mode, status string, durationSeconds float64) {
	SearchRequests.WithLabelValues(mode, status).Inc()
	if durationSeconds > 0 {
		SearchLatency.WithLabelValues(mode).Observe(durationSeconds)
	}
}

// RecordCompletion records one completion request.
func RecordCompletion(model, status string, durationSeconds float64) {
	CompletionRequests.WithLabelValues(model, status).Inc()
	if durationSeconds > 0 {
		CompletionLatency.WithLabelValues(model).Observe(durationSeconds)
	}
}

// RecordRequest records one pipeline invocation outcome.
func RecordRequest(endpoint, status string, durationSeconds float64) {
	RequestsCompleted.WithLabelValues(endpoint, status).Inc()
	RequestDuration.WithLabelValues(endpoint).Observe(durationSeconds)
}
