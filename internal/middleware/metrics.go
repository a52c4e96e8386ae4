package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records request rate, errors and duration per route. Each call
// registers a fresh set of collectors with reg.
func Metrics(reg prometheus.Registerer) gin.HandlerFunc {
	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	requestErrors := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_errors_total",
			Help: "Total number of HTTP requests answered with a 4xx or 5xx status",
		},
		[]string{"method", "path", "status", "error_type"},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	reg.MustRegister(requests, requestErrors, duration)

	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		statusStr := strconv.Itoa(status)
		// Route templates keep the label set small.
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method

		requests.WithLabelValues(method, path, statusStr).Inc()
		switch {
		case status >= 500:
			requestErrors.WithLabelValues(method, path, statusStr, "server").Inc()
		case status >= 400:
			requestErrors.WithLabelValues(method, path, statusStr, "client").Inc()
		}
		duration.WithLabelValues(method, path, statusStr).Observe(time.Since(start).Seconds())
	}
}
