// Package metrics exposes Prometheus metrics for the API server and the worker.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "restaurant_finder"

var circuitStates = []string{"closed", "half-open", "open"}

// Collector records application metrics. It satisfies places.Recorder,
// restaurants.Observer and workers.Recorder.
type Collector struct {
	upstreamCalls   *prometheus.CounterVec
	upstreamLatency *prometheus.HistogramVec
	circuitState    *prometheus.GaugeVec
	reconciliations *prometheus.CounterVec
	photoCache      *prometheus.CounterVec
	refreshJobs     *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpLatency     *prometheus.HistogramVec
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		upstreamCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "places_requests_total",
			Help:      "Calls to the places provider by operation and outcome.",
		}, []string{"operation", "outcome"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "places_request_duration_seconds",
			Help:      "Latency of calls to the places provider.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		circuitState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "1 for the current state of each circuit breaker, 0 otherwise.",
		}, []string{"name", "state"}),
		reconciliations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciliations_total",
			Help:      "Nearby-search candidates by reconciliation outcome.",
		}, []string{"outcome"}),
		photoCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "photo_cache_lookups_total",
			Help:      "Photo cache lookups by result.",
		}, []string{"result"}),
		refreshJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_jobs_total",
			Help:      "Restaurant refresh jobs handled by the worker, by outcome.",
		}, []string{"outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status_code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		c.upstreamCalls,
		c.upstreamLatency,
		c.circuitState,
		c.reconciliations,
		c.photoCache,
		c.refreshJobs,
		c.httpRequests,
		c.httpLatency,
	)

	return c
}

// ObserveUpstreamCall records one places provider call.
func (c *Collector) ObserveUpstreamCall(operation, outcome string, duration time.Duration) {
	c.upstreamCalls.WithLabelValues(operation, outcome).Inc()
	c.upstreamLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordCircuitState marks state as the current state of the named breaker.
func (c *Collector) RecordCircuitState(name, state string) {
	for _, s := range circuitStates {
		value := 0.0
		if s == state {
			value = 1
		}
		c.circuitState.WithLabelValues(name, s).Set(value)
	}
}

// ObserveReconciliation counts one candidate outcome.
func (c *Collector) ObserveReconciliation(outcome string) {
	c.reconciliations.WithLabelValues(outcome).Inc()
}

// RecordPhotoCacheLookup counts a cache hit or miss.
func (c *Collector) RecordPhotoCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.photoCache.WithLabelValues(result).Inc()
}

// RecordRefreshJob counts a handled refresh job.
func (c *Collector) RecordRefreshJob(outcome string) {
	c.refreshJobs.WithLabelValues(outcome).Inc()
}

// ObserveHTTPRequest records one served request. route is the mux path template.
func (c *Collector) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpLatency.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Handler returns the Prometheus scrape handler.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
