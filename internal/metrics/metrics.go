// Package metrics exposes Prometheus collectors for the favicon service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	resolutionsTotal           *prometheus.CounterVec
	cacheLookupsTotal          *prometheus.CounterVec
	candidateFetchesTotal      *prometheus.CounterVec
	conversionsTotal           *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors. It is safe to call
// multiple times; observation helpers call it lazily so tests need no setup.
func Init() {
	once.Do(func() {
		resolutionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "favicond_resolutions_total",
				Help: "Total cold resolutions, labeled by host and outcome.",
			},
			[]string{"host", "outcome"},
		)

		cacheLookupsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "favicond_cache_lookups_total",
				Help: "Total cache lookups, labeled by result (hit, miss, stale).",
			},
			[]string{"result"},
		)

		candidateFetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "favicond_candidate_fetches_total",
				Help: "Total candidate fetches, labeled by outcome (payload, empty, error).",
			},
			[]string{"outcome"},
		)

		conversionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "favicond_conversions_total",
				Help: "Total conversion invocations, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"method"},
		)
	})
}

// SanitizeHost sanitizes a URL or host to a lowercase hostname label.
// It returns "unknown" if the value is invalid.
func SanitizeHost(raw string) string {
	if !strings.HasPrefix(raw, "http") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveResolution counts one cold resolution for host with the outcome.
func ObserveResolution(host, outcome string) {
	Init()
	resolutionsTotal.WithLabelValues(SanitizeHost(host), outcome).Inc()
}

// ObserveCacheLookup counts one cache lookup result.
func ObserveCacheLookup(result string) {
	Init()
	cacheLookupsTotal.WithLabelValues(result).Inc()
}

// ObserveCandidateFetch counts one candidate fetch outcome.
func ObserveCandidateFetch(outcome string) {
	Init()
	candidateFetchesTotal.WithLabelValues(outcome).Inc()
}

// ObserveConversion counts one conversion invocation outcome.
func ObserveConversion(outcome string) {
	Init()
	conversionsTotal.WithLabelValues(outcome).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method).Observe(duration.Seconds())
}
