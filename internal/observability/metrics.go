package observability

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce          sync.Once
	httpRequestsTotal     *prometheus.CounterVec
	httpLatencySeconds    *prometheus.HistogramVec
	httpErrorsTotal       *prometheus.CounterVec
	decisionsTotal        *prometheus.CounterVec
	decisionReplaysTotal  prometheus.Counter
	recomputeSeconds      prometheus.Histogram
	standingDriftTotal    prometheus.Counter
	standingCacheTotal    *prometheus.CounterVec
	uploadRequestsTotal   *prometheus.CounterVec
	uploadRejectedTotal   *prometheus.CounterVec
	uploadLatencySeconds  prometheus.Histogram
	submissionsTotal      *prometheus.CounterVec
	eventPublishFailTotal prometheus.Counter
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		decisionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "review_decisions_total",
			Help: "Review decisions processed, by kind and outcome.",
		}, []string{"kind", "outcome"})

		decisionReplaysTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "review_decision_replays_total",
			Help: "Decisions answered from a stored result for a repeated decision id.",
		})

		recomputeSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "standing_recompute_seconds",
			Help:    "Time spent recomputing a learner's total score and level.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		})

		standingDriftTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "standing_drift_repaired_total",
			Help: "Learners whose stored standing differed from their badges during reconciliation.",
		})

		standingCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "standing_cache_requests_total",
			Help: "Standing cache lookups by result.",
		}, []string{"result"})

		uploadRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "upload_requests_total",
			Help: "Accepted uploads by detected content type.",
		}, []string{"mime"})

		uploadRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "upload_rejected_total",
			Help: "Rejected uploads by reason.",
		}, []string{"reason"})

		uploadLatencySeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "upload_latency_seconds",
			Help:    "Latency distribution for attachment uploads.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		})

		submissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "submissions_total",
			Help: "Submit attempts by outcome.",
		}, []string{"outcome"})

		eventPublishFailTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "decision_event_publish_failures_total",
			Help: "Decision events that could not be published after commit.",
		})

		prometheus.MustRegister(
			httpRequestsTotal, httpLatencySeconds, httpErrorsTotal,
			decisionsTotal, decisionReplaysTotal, recomputeSeconds,
			standingDriftTotal, standingCacheTotal,
			uploadRequestsTotal, uploadRejectedTotal, uploadLatencySeconds,
			submissionsTotal, eventPublishFailTotal,
		)
	})
}

// MetricsHandler serves the default registry in the Prometheus text or
// OpenMetrics format, depending on what the scraper accepts.
func MetricsHandler() fiber.Handler {
	RegisterMetrics()
	handler := promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
	return adaptor.HTTPHandler(handler)
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// Decisions counts applied and failed review decisions.
func Decisions() *prometheus.CounterVec {
	RegisterMetrics()
	return decisionsTotal
}

// DecisionReplays counts idempotent replays.
func DecisionReplays() prometheus.Counter {
	RegisterMetrics()
	return decisionReplaysTotal
}

// RecomputeLatency observes standing recomputation time.
func RecomputeLatency() prometheus.Histogram {
	RegisterMetrics()
	return recomputeSeconds
}

// StandingDrift counts repaired standings.
func StandingDrift() prometheus.Counter {
	RegisterMetrics()
	return standingDriftTotal
}

// StandingCache counts cache hits and misses.
func StandingCache() *prometheus.CounterVec {
	RegisterMetrics()
	return standingCacheTotal
}

// UploadRequests counts accepted uploads.
func UploadRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadRequestsTotal
}

// UploadRejected counts rejected uploads.
func UploadRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadRejectedTotal
}

// UploadLatency observes upload handling time.
func UploadLatency() prometheus.Histogram {
	RegisterMetrics()
	return uploadLatencySeconds
}

// Submissions counts submit attempts.
func Submissions() *prometheus.CounterVec {
	RegisterMetrics()
	return submissionsTotal
}

// EventPublishFailures counts decision events lost after commit.
func EventPublishFailures() prometheus.Counter {
	RegisterMetrics()
	return eventPublishFailTotal
}
