// Package metrics holds the prometheus collectors for the verification
// pipeline and its HTTP front end.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	verificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "emailverify_verifications_total",
		Help: "Total completed verifications by final status.",
	}, []string{"status"})

	verificationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "emailverify_verification_duration_seconds",
		Help:    "Time spent in a single verification, by final status.",
		Buckets: []float64{.005, .05, .25, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"status"})

	cacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "emailverify_cache_lookups_total",
		Help: "Cache lookups by kind (result, mx) and result (hit, miss, error).",
	}, []string{"kind", "result"})

	probesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "emailverify_smtp_probes_total",
		Help: "SMTP probe outcomes.",
	}, []string{"outcome"})

	rateLimitWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "emailverify_ratelimit_wait_seconds",
		Help:    "Time spent waiting for a per-domain rate limit slot.",
		Buckets: []float64{.001, .01, .1, 1, 5, 15, 30, 60, 120},
	})

	inFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "emailverify_verifications_in_flight",
		Help: "Verifications currently holding a concurrency slot.",
	})

	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "emailverify_http_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "emailverify_http_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
)

// RecordVerification records a finished verification.
func RecordVerification(status string, elapsed time.Duration) {
	verificationsTotal.WithLabelValues(status).Inc()
	verificationDuration.WithLabelValues(status).Observe(elapsed.Seconds())
}

// RecordCacheLookup records a cache lookup. kind is "result" or "mx",
// result is "hit", "miss" or "error".
func RecordCacheLookup(kind, result string) {
	cacheLookupsTotal.WithLabelValues(kind, result).Inc()
}

// RecordProbe records the outcome of an SMTP probe.
func RecordProbe(outcome string) {
	probesTotal.WithLabelValues(outcome).Inc()
}

// ObserveRateLimitWait records time spent inside the domain limiter.
func ObserveRateLimitWait(d time.Duration) {
	rateLimitWait.Observe(d.Seconds())
}

// InFlightInc marks a verification as holding a concurrency slot.
func InFlightInc() { inFlight.Inc() }

// InFlightDec releases the mark set by InFlightInc.
func InFlightDec() { inFlight.Dec() }

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		requestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		requestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler returns a Gin handler that serves Prometheus metrics.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
