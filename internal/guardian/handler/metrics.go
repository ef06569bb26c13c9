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
	guardianSyncsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guardian_syncs_total",
		Help: "Total chain sync attempts by result.",
	}, []string{"result"})

	guardianSyncedBlocks = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "guardian_synced_chain_blocks",
		Help:    "Block count of accepted chains.",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8),
	})

	guardianRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guardian_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	guardianRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "guardian_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	guardianSweepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guardian_integrity_sweeps_total",
		Help: "Total stored-chain re-verifications by verdict.",
	}, []string{"verdict"})

	guardianReportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guardian_reports_total",
		Help: "Total narrative reports generated by source.",
	}, []string{"source"})

	guardianAlertDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guardian_alert_deliveries_total",
		Help: "Total alert webhook deliveries by success status.",
	}, []string{"status"})
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

		guardianRequestsTotal.WithLabelValues(method, path, status).Inc()
		guardianRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordSync records a sync attempt and, when accepted, its chain length.
func RecordSync(accepted bool, blocks int) {
	if accepted {
		guardianSyncsTotal.WithLabelValues("accepted").Inc()
		guardianSyncedBlocks.Observe(float64(blocks))
	} else {
		guardianSyncsTotal.WithLabelValues("rejected").Inc()
	}
}

// RecordSweep records an integrity sweep verdict.
func RecordSweep(valid bool) {
	if valid {
		guardianSweepsTotal.WithLabelValues("valid").Inc()
	} else {
		guardianSweepsTotal.WithLabelValues("invalid").Inc()
	}
}

// RecordReport records a generated report by its source ("model" or "fallback").
func RecordReport(source string) {
	guardianReportsTotal.WithLabelValues(source).Inc()
}

// RecordAlertDelivery records an alert webhook delivery attempt.
func RecordAlertDelivery(success bool) {
	if success {
		guardianAlertDeliveriesTotal.WithLabelValues("success").Inc()
	} else {
		guardianAlertDeliveriesTotal.WithLabelValues("failure").Inc()
	}
}
