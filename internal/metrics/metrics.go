// Package metrics exposes Prometheus collectors for the shields service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	resolutionsTotal           *prometheus.CounterVec
	matchedPatterns            prometheus.Histogram
	actionsTotal               *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init registers the collectors with the default registry. It is safe to call
// multiple times.
func Init() {
	once.Do(func() {
		resolutionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shields_resolutions_total",
				Help: "Site-settings lookups, labeled by mode and whether an override applied.",
			},
			[]string{"mode", "result"},
		)

		matchedPatterns = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "shields_matched_patterns",
				Help:    "Number of stored patterns contributing to a lookup.",
				Buckets: []float64{0, 1, 2, 3, 4, 6, 8},
			},
		)

		actionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shields_actions_total",
				Help: "State actions received, labeled by action and outcome.",
			},
			[]string{"action", "outcome"},
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
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveResolution records one lookup. private selects the mode label.
func ObserveResolution(private, found bool, matched int) {
	mode := "regular"
	if private {
		mode = "private"
	}
	result := "miss"
	if found {
		result = "hit"
	}
	resolutionsTotal.WithLabelValues(mode, result).Inc()
	matchedPatterns.Observe(float64(matched))
}

// ObserveAction records the outcome of a state action.
func ObserveAction(action string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	actionsTotal.WithLabelValues(action, outcome).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
