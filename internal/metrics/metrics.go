package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeSuccess    = "success"
	OutcomeFailure    = "failure"
	OutcomeAuth       = "auth_unavailable"
	OutcomeSuperseded = "superseded"
)

// Registry owns the process metrics and serves them on /metrics.
type Registry struct {
	reg        *prometheus.Registry
	Collection *Collection
}

func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	return &Registry{
		reg:        reg,
		Collection: NewCollection(reg),
	}
}

func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Collection records remote collection calls by resource, operation and outcome.
type Collection struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewCollection(reg prometheus.Registerer) *Collection {
	if reg == nil {
		return &Collection{}
	}
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "collection_requests_total",
		Help: "Remote collection calls.",
	}, []string{"resource", "op", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "collection_request_duration_seconds",
		Help:    "Remote collection call latency in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"resource", "op"})
	reg.MustRegister(requests, duration)
	return &Collection{requests: requests, duration: duration}
}

func (c *Collection) Observe(resource, op, outcome string, elapsed time.Duration) {
	if c == nil || c.requests == nil {
		return
	}
	c.requests.WithLabelValues(resource, op, outcome).Inc()
	c.duration.WithLabelValues(resource, op).Observe(elapsed.Seconds())
}
