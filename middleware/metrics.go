package middleware

import (
	"context"
	"strconv"
	"time"

	aws_pkg "order-payment-service/pkg/aws"

	"github.com/gin-gonic/gin"
)

// HTTPMetrics records request count, latency and error classes to CloudWatch.
// Metric writes happen off the request path.
func HTTPMetrics(metrics *aws_pkg.MetricsClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metrics == nil || !metrics.IsEnabled() {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		dims := map[string]string{
			"Method": c.Request.Method,
			"Route":  route,
			"Status": strconv.Itoa(status),
		}

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metrics.RecordCount(ctx, aws_pkg.MetricHTTPRequests, dims)
			_ = metrics.RecordLatency(ctx, aws_pkg.MetricHTTPLatency, latency, dims)
			switch {
			case status >= 500:
				_ = metrics.RecordCount(ctx, aws_pkg.MetricHTTP5xx, dims)
			case status >= 400:
				_ = metrics.RecordCount(ctx, aws_pkg.MetricHTTP4xx, dims)
			}
		}()
	}
}
