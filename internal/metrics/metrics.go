// Package metrics provides Prometheus metrics for genrecover.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genrecover_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "genrecover_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Recovery metrics
	analysesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genrecover_analyses_total",
			Help: "Total recovery analyses by resulting action",
		},
		[]string{"action"},
	)

	emergencyExtractionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genrecover_emergency_extractions_total",
			Help: "Total emergency extractions by result",
		},
		[]string{"result"},
	)

	recoveredFilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genrecover_recovered_files_total",
			Help: "Total files recovered by source",
		},
		[]string{"source"},
	)

	bufferBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "genrecover_buffer_bytes",
			Help:    "Size of analyzed response buffers in bytes",
			Buckets: prometheus.ExponentialBuckets(512, 2, 12),
		},
	)

	// Watch metrics
	watchTriggersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genrecover_watch_triggers_total",
			Help: "Total stall watcher triggers by reason",
		},
		[]string{"reason"},
	)
)

// Recovered file sources.
const (
	SourceEngine    = "engine"
	SourceEmergency = "emergency"
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordAnalysis records one engine verdict.
func RecordAnalysis(action string, bufferLen, recovered int) {
	analysesTotal.WithLabelValues(action).Inc()
	bufferBytes.Observe(float64(bufferLen))
	if recovered > 0 {
		recoveredFilesTotal.WithLabelValues(SourceEngine).Add(float64(recovered))
	}
}

// RecordEmergencyExtraction records one emergency extraction.
func RecordEmergencyExtraction(bufferLen, recovered int) {
	bufferBytes.Observe(float64(bufferLen))
	result := "found"
	if recovered == 0 {
		result = "empty"
	}
	emergencyExtractionsTotal.WithLabelValues(result).Inc()
	if recovered > 0 {
		recoveredFilesTotal.WithLabelValues(SourceEmergency).Add(float64(recovered))
	}
}

// RecordWatchTrigger records a stall watcher trigger.
func RecordWatchTrigger(reason string) {
	watchTriggersTotal.WithLabelValues(reason).Inc()
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware returns HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		RecordHTTPRequest(r.Method, r.URL.Path, rw.statusCode, time.Since(start))
	})
}
