// Package telemetry exposes Prometheus metrics for the scan pipeline.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	scansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webscan_scans_total",
			Help: "Total number of scans reaching a terminal state, labeled by status.",
		},
		[]string{"status"},
	)

	analyzerDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "webscan_analyzer_duration_seconds",
			Help:    "Histogram of analyzer run durations, labeled by analyzer kind.",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 15},
		},
		[]string{"kind"},
	)

	analyzerFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webscan_analyzer_failures_total",
			Help: "Total number of analyzer runs that ended in failed status.",
		},
		[]string{"kind"},
	)

	rateLimitRejectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "webscan_ratelimit_rejections_total",
			Help: "Total number of scans rejected by per-domain admission.",
		},
	)

	fetchDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "webscan_fetch_duration_seconds",
			Help:    "Histogram of page fetch durations.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 15},
		},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webscan_http_requests_total",
			Help: "Total number of HTTP requests, labeled by method and code.",
		},
		[]string{"method", "code"},
	)
)

// ObserveScan records one terminal scan transition.
func ObserveScan(status string) {
	scansTotal.WithLabelValues(status).Inc()
}

// ObserveAnalyzer records one analyzer run.
func ObserveAnalyzer(kind string, failed bool, d time.Duration) {
	analyzerDurationSeconds.WithLabelValues(kind).Observe(d.Seconds())
	if failed {
		analyzerFailuresTotal.WithLabelValues(kind).Inc()
	}
}

// ObserveRateLimitRejection records one admission rejection.
func ObserveRateLimitRejection() {
	rateLimitRejectionsTotal.Inc()
}

// ObserveFetch records one page fetch.
func ObserveFetch(d time.Duration) {
	fetchDurationSeconds.Observe(d.Seconds())
}

// ObserveHTTPRequest records one API request.
func ObserveHTTPRequest(method string, code int) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
