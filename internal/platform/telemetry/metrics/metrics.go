package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tapestry"

// Mutation outcomes recorded by ObserveMutation.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
)

// Registry owns the Tapestry collectors.
type Registry struct {
	registry *prometheus.Registry

	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	mutations        *prometheus.CounterVec
	mutationDuration *prometheus.HistogramVec
}

// NewRegistry creates a registry with the HTTP, mutation, Go runtime and
// process collectors registered.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status", "service"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "route"},
		),
		mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sheet",
				Name:      "mutations_total",
				Help:      "Optimistic sheet mutations by outcome",
			},
			[]string{"outcome"},
		),
		mutationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "sheet",
				Name:      "mutation_duration_seconds",
				Help:      "Time from optimistic apply to settlement",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
	}
	r.registry.MustRegister(
		r.httpRequests,
		r.httpDuration,
		r.mutations,
		r.mutationDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Gatherer exposes the underlying registry for tests and custom exporters.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Handler serves the registry in Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// ObserveHTTP records one completed HTTP request.
func (r *Registry) ObserveHTTP(method, route string, status int, service string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(method, route, strconv.Itoa(status), service).Inc()
	r.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveMutation records one settled optimistic mutation.
func (r *Registry) ObserveMutation(outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.mutations.WithLabelValues(outcome).Inc()
	r.mutationDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}
