// Package metrics provides Prometheus metrics for the proxy.
package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Default histogram buckets; the downstream is a slow scripted webhook, so the
// upper buckets reach well past typical API latency.
var defaultBuckets = []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 20, 30}

// Metrics holds all Prometheus metric collectors for the proxy.
type Metrics struct {
	Registry *prometheus.Registry

	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	DownstreamDuration  prometheus.Histogram
	DownstreamResponses *prometheus.CounterVec
	DownstreamFailures  prometheus.Counter
	Results             *prometheus.CounterVec
}

// New creates a Metrics instance with a custom registry and all collectors registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		Registry: reg,

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_proxy_http_requests_total",
			Help: "Total inbound HTTP requests.",
		}, []string{"method", "status_code", "path_prefix"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "webhook_proxy_http_request_duration_seconds",
			Help:    "Inbound HTTP request latency in seconds.",
			Buckets: defaultBuckets,
		}, []string{"method", "status_code", "path_prefix"}),

		RequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "webhook_proxy_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed.",
		}),

		DownstreamDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "webhook_proxy_downstream_request_duration_seconds",
			Help:    "Downstream webhook call latency in seconds.",
			Buckets: defaultBuckets,
		}),

		DownstreamResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_proxy_downstream_responses_total",
			Help: "Total downstream responses by status code.",
		}, []string{"status_code"}),

		DownstreamFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "webhook_proxy_downstream_failures_total",
			Help: "Downstream calls that failed before a response was received.",
		}),

		Results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_proxy_results_total",
			Help: "Normalized results by status and body shape (object, data, raw).",
		}, []string{"status", "shape"}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.RequestsInFlight,
		m.DownstreamDuration,
		m.DownstreamResponses,
		m.DownstreamFailures,
		m.Results,
	)

	return m
}

// knownMethods lists the allowed HTTP method label values (bounded cardinality).
var knownMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true,
	"PATCH": true, "HEAD": true, "OPTIONS": true,
}

// NormalizeMethod returns a bounded HTTP method label for Prometheus metrics.
// Non-standard methods are mapped to "other" to prevent cardinality explosion.
func NormalizeMethod(method string) string {
	if knownMethods[method] {
		return method
	}
	return "other"
}

// knownPrefixes lists the allowed path label values (bounded cardinality).
var knownPrefixes = []string{"/submit", "/healthz", "/proxy/status"}

// NormalizePath returns a bounded path label for Prometheus metrics. Extra
// prefixes, such as the configured scrape path, are kept as their own label.
func NormalizePath(path string, extra ...string) string {
	for _, prefixes := range [][]string{knownPrefixes, extra} {
		for _, prefix := range prefixes {
			if prefix != "" && hasPathPrefix(path, prefix) {
				return prefix
			}
		}
	}
	return "other"
}

func hasPathPrefix(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/") || strings.HasPrefix(path, prefix+"?")
}
