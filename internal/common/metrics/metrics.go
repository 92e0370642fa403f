package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "nlq"

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_jobs_completed_total",
			Help:      "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_jobs_failed_total",
			Help:      "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "worker_job_duration_seconds",
			Help:      "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	QueriesAnalyzed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "queries_analyzed_total",
			Help:      "Queries analyzed, by resolved intent",
		},
		[]string{"intent"},
	)

	ClarificationsRequested = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "clarifications_total",
			Help:      "Queries that failed the clarification gate",
		},
	)

	RefinementIterations = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "refinement_iterations",
			Help:      "Iterations used by the semantic refinement loop",
			Buckets:   []float64{1, 2, 3, 4, 5, 8},
		},
	)

	SpecialistCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "agents",
			Name:      "specialist_calls_total",
			Help:      "Specialist invocations by outcome (answered, not_relevant, error)",
		},
		[]string{"agent", "outcome"},
	)

	SpecialistLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "agents",
			Name:      "specialist_latency_seconds",
			Help:      "Specialist wall-clock time",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"agent"},
	)

	ConvergenceOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "agents",
			Name:      "convergence_total",
			Help:      "Convergence results (single, merged, insufficient)",
		},
		[]string{"outcome"},
	)

	LLMRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "requests_total",
			Help:      "LLM completion requests by provider and status",
		},
		[]string{"provider", "status"},
	)

	LLMLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "request_duration_seconds",
			Help:      "LLM completion latency",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"provider"},
	)

	FeedbackEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "knowledge",
			Name:      "feedback_events_total",
			Help:      "Feedback events by outcome and result",
		},
		[]string{"outcome", "result"},
	)

	FeedbackQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "knowledge",
			Name:      "feedback_queue_depth",
			Help:      "Pending asynchronous feedback events",
		},
	)

	PatternCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "knowledge",
			Name:      "pattern_cache_lookups_total",
			Help:      "Pattern cache lookups by result (hit, miss, error)",
		},
		[]string{"result"},
	)
)
