// Package metrics provides Prometheus instrumentation for the fraud service.
package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, route, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fraudservice",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, route pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and route.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fraudservice",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// PredictionRequestsTotal counts prediction calls by model and outcome.
	PredictionRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fraudservice",
			Subsystem: "gateway",
			Name:      "prediction_requests_total",
			Help:      "Total prediction requests by model and outcome.",
		},
		[]string{"model", "outcome"}, // outcome: "success", "rejected", "failed"
	)

	// PredictionDuration observes scoring latency per model.
	PredictionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fraudservice",
			Subsystem: "gateway",
			Name:      "prediction_duration_seconds",
			Help:      "Model scoring time in seconds.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
		[]string{"model"},
	)

	// GeoLookupsTotal counts address resolutions by outcome.
	GeoLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fraudservice",
			Subsystem: "geo",
			Name:      "lookups_total",
			Help:      "Total address lookups by outcome.",
		},
		[]string{"outcome"}, // "resolved", "cached", "invalid_address", "no_match"
	)

	// GeoRanges tracks the size of the active range table.
	GeoRanges = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "fraudservice",
			Subsystem: "geo",
			Name:      "ranges",
			Help:      "Number of ranges in the active geolocation snapshot.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		PredictionRequestsTotal,
		PredictionDuration,
		GeoLookupsTotal,
		GeoRanges,
	)
}

// Middleware records request count and latency per route pattern.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		// Route pattern, not the raw path, keeps label cardinality bounded.
		path := c.Route().Path
		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		HTTPRequestDuration.WithLabelValues(c.Method(), path).Observe(time.Since(start).Seconds())
		HTTPRequestsTotal.WithLabelValues(c.Method(), path, statusBucket(status)).Inc()
		return err
	}
}

// Handler serves the Prometheus exposition format.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}

// statusBucket groups status codes into 2xx, 3xx, 4xx and 5xx.
func statusBucket(code int) string {
	if code < 100 || code > 599 {
		return "unknown"
	}
	return strconv.Itoa(code/100) + "xx"
}
