package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"

	"github.com/SWFTstudios/onlyatthekiosk-website/internal/infrastructure/telemetry"
)

// httpMetrics holds the HTTP server instruments.
type httpMetrics struct {
	requests *telemetry.Counter
	duration *telemetry.Histogram
}

func newHTTPMetrics(meter metric.Meter) (*httpMetrics, error) {
	requests, err := telemetry.NewCounter(meter,
		"http_server_request_total",
		"Total number of HTTP requests",
		"{request}",
	)
	if err != nil {
		return nil, err
	}
	duration, err := telemetry.NewHistogram(meter,
		"http_server_request_duration_seconds",
		"HTTP request latency distribution in seconds",
		"s",
		telemetry.HTTPDurationBuckets...,
	)
	if err != nil {
		return nil, err
	}
	return &httpMetrics{requests: requests, duration: duration}, nil
}

// HTTPMetrics counts requests by method, route pattern and status class and
// records their latency. A nil meter disables the middleware.
func HTTPMetrics(meter metric.Meter) (gin.HandlerFunc, error) {
	if meter == nil {
		return func(c *gin.Context) { c.Next() }, nil
	}
	m, err := newHTTPMetrics(meter)
	if err != nil {
		return nil, err
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		ctx := c.Request.Context()
		method := telemetry.AttrHTTPMethod.String(c.Request.Method)
		path := telemetry.AttrHTTPRoute.String(route)

		m.requests.Add(ctx, 1, method, path, telemetry.AttrHTTPStatusClass.String(StatusClass(c.Writer.Status())))
		m.duration.RecordDuration(ctx, time.Since(start), method, path)
	}, nil
}

// StatusClass groups a status code into 2xx, 3xx, 4xx, 5xx or other
func StatusClass(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "2xx"
	case statusCode >= 300 && statusCode < 400:
		return "3xx"
	case statusCode >= 400 && statusCode < 500:
		return "4xx"
	case statusCode >= 500 && statusCode < 600:
		return "5xx"
	default:
		return "other"
	}
}
