package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	hubRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "studyhub_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	hubRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "studyhub_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	hubSignInsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "studyhub_sign_ins_total",
		Help: "Total successful sign-ins by provider.",
	}, []string{"provider"})

	hubViewsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "studyhub_view_events_total",
		Help: "Total accepted view-count events.",
	})

	hubThrottledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "studyhub_throttled_requests_total",
		Help: "Requests rejected by the per-IP rate limiter, by route.",
	}, []string{"path"})

	hubActiveStreams = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "studyhub_active_streams",
		Help: "Currently open SSE streams by kind.",
	}, []string{"stream"})

	hubTotals = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "studyhub_aggregate_total",
		Help: "Platform aggregate counters as exported to the landing page.",
	}, []string{"counter"})
)

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		hubRequestsTotal.WithLabelValues(method, path, status).Inc()
		hubRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordSignIn records a successful sign-in.
func RecordSignIn(provider string) {
	hubSignInsTotal.WithLabelValues(provider).Inc()
}

// RecordView records an accepted view-count event.
func RecordView() {
	hubViewsTotal.Inc()
}

// RecordThrottled records a request rejected by the rate limiter.
func RecordThrottled(path string) {
	hubThrottledTotal.WithLabelValues(path).Inc()
}

// AddActiveStream adjusts the open-stream gauge for one SSE kind.
func AddActiveStream(stream string, delta float64) {
	hubActiveStreams.WithLabelValues(stream).Add(delta)
}

// ObserveTotals mirrors the aggregate counters into gauges.
func ObserveTotals(views, resources, users int64) {
	hubTotals.WithLabelValues("views").Set(float64(views))
	hubTotals.WithLabelValues("resources").Set(float64(resources))
	hubTotals.WithLabelValues("verified_users").Set(float64(users))
}
