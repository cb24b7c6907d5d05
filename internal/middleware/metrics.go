package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "console_http_requests_total",
		Help: "HTTP requests handled by the console gateway",
	}, []string{"method", "path", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "console_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	// SSEConnections 当前SSE连接数
	SSEConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "console_sse_connections",
		Help: "Currently open SSE connections",
	})

	// UpstreamErrors 上游API错误计数，按状态码分类
	UpstreamErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "console_upstream_errors_total",
		Help: "Errors returned by the Autoflex API",
	}, []string{"status"})
)

// Metrics 请求指标中间件
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		requestTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		requestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
