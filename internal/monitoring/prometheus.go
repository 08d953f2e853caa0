package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
	httpRequestsInFlight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Current number of HTTP requests being processed",
		},
		[]string{"method", "endpoint"},
	)
	apiErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_errors_total",
			Help: "Total number of API errors",
		},
		[]string{"endpoint", "error_type"},
	)
	upstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_requests_total",
			Help: "Market data upstream requests by source and outcome",
		},
		[]string{"source", "outcome"},
	)
	cacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Cache hits by data kind",
		},
		[]string{"kind"},
	)
	cacheMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Cache misses by data kind",
		},
		[]string{"kind"},
	)
	tokenRefreshesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kis_token_refreshes_total",
			Help: "KIS access token refreshes by outcome",
		},
		[]string{"outcome"},
	)
	newsArticlesSaved = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "news_articles_saved_total",
			Help: "News articles written to storage",
		},
	)
	activeWebsockets = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections_active",
			Help: "Number of active WebSocket connections",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		httpRequestsInFlight,
		apiErrorsTotal,
		upstreamRequestsTotal,
		cacheHitsTotal,
		cacheMissesTotal,
		tokenRefreshesTotal,
		newsArticlesSaved,
		activeWebsockets,
	)
}

// MetricsMiddleware records request counts, latency, and error totals
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		httpRequestsInFlight.WithLabelValues(c.Request.Method, path).Inc()
		defer httpRequestsInFlight.WithLabelValues(c.Request.Method, path).Dec()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(duration)

		if c.Writer.Status() >= 400 {
			errorType := "client_error"
			if c.Writer.Status() >= 500 {
				errorType = "server_error"
			}
			apiErrorsTotal.WithLabelValues(path, errorType).Inc()
		}
	}
}

// PrometheusHandler returns the Prometheus metrics handler
func PrometheusHandler() http.Handler {
	return promhttp.Handler()
}

// RecordUpstreamRequest records one market-data upstream call
func RecordUpstreamRequest(source, outcome string) {
	upstreamRequestsTotal.WithLabelValues(source, outcome).Inc()
}

// RecordCacheHit records a cache hit for a data kind
func RecordCacheHit(kind string) {
	cacheHitsTotal.WithLabelValues(kind).Inc()
}

// RecordCacheMiss records a cache miss for a data kind
func RecordCacheMiss(kind string) {
	cacheMissesTotal.WithLabelValues(kind).Inc()
}

// RecordTokenRefresh records a KIS token refresh attempt
func RecordTokenRefresh(outcome string) {
	tokenRefreshesTotal.WithLabelValues(outcome).Inc()
}

// RecordNewsArticleSaved counts one stored article
func RecordNewsArticleSaved() {
	newsArticlesSaved.Inc()
}

// WebsocketOpened and WebsocketClosed track streaming connections
func WebsocketOpened() {
	activeWebsockets.Inc()
}

// WebsocketClosed decrements the active connection gauge
func WebsocketClosed() {
	activeWebsockets.Dec()
}
