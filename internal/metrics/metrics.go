// Package metrics provides Prometheus metrics for the imgtools service.
// Scrape these at /metrics for Grafana dashboards and alerting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imgtools_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "imgtools_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	RateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "imgtools_rate_limited_total",
			Help: "Uploads rejected by the per-client rate limiter",
		},
	)

	// Pipeline Metrics
	AssetLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imgtools_asset_loads_total",
			Help: "Uploaded assets by tool, kind and result",
		},
		[]string{"tool", "kind", "result"}, // kind: "raster", "vector", "unknown"; result: "success", "validation", "decode", "parse"
	)

	RendersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imgtools_renders_total",
			Help: "Render attempts by tool and result",
		},
		[]string{"tool", "result"}, // "success", "superseded", "validation", "surface", "failed"
	)

	RenderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "imgtools_render_duration_seconds",
			Help:    "Time taken to plan, composite and encode one output",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"tool"},
	)

	OutputPixels = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "imgtools_output_pixels",
			Help:    "Rendered surface area in pixels",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
		},
		[]string{"tool"},
	)

	// Export Metrics
	ExportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imgtools_exports_total",
			Help: "Successful exports by event name",
		},
		[]string{"event"}, // "convert-image-to-png", "create-square-image", "convert-svg-to-png"
	)

	ExportBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "imgtools_export_bytes",
			Help:    "Size of exported PNG files",
			Buckets: prometheus.ExponentialBuckets(4096, 4, 8),
		},
	)

	TelemetryErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "imgtools_telemetry_errors_total",
			Help: "Export events that could not be recorded",
		},
	)

	// Session Metrics
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "imgtools_active_sessions",
			Help: "Number of live tool sessions",
		},
	)

	SessionsEvictedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "imgtools_sessions_evicted_total",
			Help: "Sessions dropped because they expired or the store was full",
		},
	)
)
