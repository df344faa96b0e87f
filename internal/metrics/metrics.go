package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal     prometheus.CounterVec
	HTTPRequestDuration   prometheus.HistogramVec
	HTTPActiveConnections prometheus.GaugeVec

	// Cache metrics
	CacheHitsTotal   prometheus.CounterVec
	CacheMissesTotal prometheus.CounterVec

	// Rate limiting metrics
	RateLimitExceededTotal prometheus.CounterVec

	// Video pipeline metrics
	VideosUploadedTotal   prometheus.CounterVec
	VideoProcessingTime   prometheus.HistogramVec
	VideoProcessingFailed prometheus.CounterVec

	// Engagement metrics
	ReactionsTotal prometheus.CounterVec
	CommentsTotal  prometheus.CounterVec

	// Search metrics
	SearchQueriesTotal prometheus.CounterVec

	// Error metrics
	ErrorsTotal prometheus.CounterVec
}

var (
	instance *Metrics
	once     sync.Once
)

// Initialize creates and registers all Prometheus metrics
func Initialize() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			HTTPRequestsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "http_requests_total",
					Help: "Total number of HTTP requests",
				},
				[]string{"method", "path", "status"},
			),
			HTTPRequestDuration: *promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_request_duration_seconds",
					Help:    "HTTP request latency in seconds",
					Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
				},
				[]string{"method", "path", "status"},
			),
			HTTPActiveConnections: *promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "http_active_connections",
					Help: "Number of in-flight HTTP requests",
				},
				[]string{"method", "path"},
			),
			CacheHitsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cache_hits_total",
					Help: "Total cache hits",
				},
				[]string{"cache"},
			),
			CacheMissesTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cache_misses_total",
					Help: "Total cache misses",
				},
				[]string{"cache"},
			),
			RateLimitExceededTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "rate_limit_exceeded_total",
					Help: "Requests rejected by rate limiting",
				},
				[]string{"endpoint", "method"},
			),
			VideosUploadedTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "videos_uploaded_total",
					Help: "Videos accepted for processing",
				},
				[]string{"status"},
			),
			VideoProcessingTime: *promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "video_processing_duration_seconds",
					Help:    "Time spent processing an uploaded video",
					Buckets: []float64{1, 2.5, 5, 10, 30, 60, 120, 300},
				},
				[]string{"outcome"},
			),
			VideoProcessingFailed: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "video_processing_failed_total",
					Help: "Video processing jobs that failed",
				},
				[]string{"stage"},
			),
			ReactionsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "reactions_total",
					Help: "Reactions recorded",
				},
				[]string{"type", "action"},
			),
			CommentsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "comments_total",
					Help: "Comments created",
				},
				[]string{"kind"},
			),
			SearchQueriesTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "search_queries_total",
					Help: "Catalog search queries by backend used",
				},
				[]string{"backend"},
			),
			ErrorsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "errors_total",
					Help: "Application errors by type",
				},
				[]string{"type", "endpoint"},
			),
		}
	})
	return instance
}

// Get returns the metrics instance, initializing it if needed
func Get() *Metrics {
	return Initialize()
}

// RecordVideoProcessed records a completed processing job
func RecordVideoProcessed(outcome string, duration time.Duration) {
	m := Get()
	m.VideoProcessingTime.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordVideoProcessingFailure records a failed processing stage
func RecordVideoProcessingFailure(stage string) {
	Get().VideoProcessingFailed.WithLabelValues(stage).Inc()
}

// RecordReaction records a reaction event
func RecordReaction(reactionType, action string) {
	Get().ReactionsTotal.WithLabelValues(reactionType, action).Inc()
}

// RecordSearch records a catalog search by backend ("elasticsearch" or "sql")
func RecordSearch(backend string) {
	Get().SearchQueriesTotal.WithLabelValues(backend).Inc()
}
