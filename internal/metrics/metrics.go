// Package metrics provides Prometheus instrumentation for Talon.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "talon",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "talon",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// AnalysesTotal counts completed risk analyses by risk level.
	AnalysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "talon",
			Name:      "analyses_total",
			Help:      "Total completed risk analyses by risk level.",
		},
		[]string{"risk_level"},
	)

	// AdapterFailures counts signal adapter failures by adapter name.
	AdapterFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "talon",
			Name:      "signal_adapter_failures_total",
			Help:      "Total signal adapter failures absorbed by the pipeline.",
		},
		[]string{"adapter"},
	)

	// ShadowMatches counts shadow-mode rule matches (recorded, not scored).
	ShadowMatches = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "talon",
			Name:      "shadow_rule_matches_total",
			Help:      "Total shadow-mode rule matches excluded from scoring.",
		},
	)

	// ProfileConflicts counts optimistic-concurrency retries on profile saves.
	ProfileConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "talon",
			Name:      "profile_version_conflicts_total",
			Help:      "Total profile save conflicts resolved by retry.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		AnalysesTotal,
		AdapterFailures,
		ShadowMatches,
		ProfileConflicts,
	)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
