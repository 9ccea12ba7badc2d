package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	awspkg "github.com/yashrajoria/checkout-service/pkg/aws"
)

// RequestRecorder is the part of the CloudWatch client the middleware needs.
type RequestRecorder interface {
	IsEnabled() bool
	RecordCount(ctx context.Context, metricName string, dimensions map[string]string) error
	RecordLatency(ctx context.Context, metricName string, duration time.Duration, dimensions map[string]string) error
}

// MetricsMiddleware records request count, latency and 4xx/5xx counts per
// route template. Requests to skipPaths (probes) are not recorded.
func MetricsMiddleware(recorder RequestRecorder, serviceName string, skipPaths ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if !recorder.IsEnabled() {
			c.Next()
			return
		}
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		dims := map[string]string{
			"Service": serviceName,
			"Method":  c.Request.Method,
			"Path":    route,
			"Status":  statusCodeToRange(status),
		}
		// PutMetricData is a network call; keep it off the request path.
		go recordRequest(recorder, dims, status, time.Since(start))
	}
}

func recordRequest(recorder RequestRecorder, dims map[string]string, status int, took time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_ = recorder.RecordCount(ctx, awspkg.MetricHTTPRequests, dims)
	_ = recorder.RecordLatency(ctx, awspkg.MetricHTTPLatency, took, dims)
	switch {
	case status >= 500:
		_ = recorder.RecordCount(ctx, awspkg.MetricHTTP5xx, dims)
	case status >= 400:
		_ = recorder.RecordCount(ctx, awspkg.MetricHTTP4xx, dims)
	}
}

func statusCodeToRange(statusCode int) string {
	switch {
	case statusCode >= 500:
		return "5xx"
	case statusCode >= 400:
		return "4xx"
	case statusCode >= 300:
		return "3xx"
	case statusCode >= 200:
		return "2xx"
	default:
		return "unknown"
	}
}
