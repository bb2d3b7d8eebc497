// Package metrics exposes Prometheus instrumentation for the HTTP surface and the loan workflow.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hongminglow/loan-be/internal/models"
)

// Recorder is what services and middleware report into.
type Recorder interface {
	RecordRequest(route string, status int, duration time.Duration)
	RecordTransition(stage models.Stage)
	RecordRateLimitHit(route string)
}

// Collector is the Prometheus-backed Recorder.
type Collector struct {
	requests      *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	transitions   *prometheus.CounterVec
	rateLimitHits *prometheus.CounterVec
}

// NewCollector creates the metrics and registers them with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "loan_http_requests_total",
			Help: "HTTP responses by route and status code.",
		}, []string{"route", "status_code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "loan_http_request_duration_seconds",
			Help:    "HTTP handler latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "loan_workflow_transitions_total",
			Help: "Loans entering each workflow stage.",
		}, []string{"stage"}),
		rateLimitHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "loan_rate_limit_hits_total",
			Help: "Requests rejected by the rate limiter.",
		}, []string{"route"}),
	}

	reg.MustRegister(
		c.requests,
		c.latency,
		c.transitions,
		c.rateLimitHits,
	)

	return c
}

func (c *Collector) RecordRequest(route string, status int, duration time.Duration) {
	c.requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	c.latency.WithLabelValues(route).Observe(duration.Seconds())
}

func (c *Collector) RecordTransition(stage models.Stage) {
	c.transitions.WithLabelValues(string(stage)).Inc()
}

func (c *Collector) RecordRateLimitHit(route string) {
	c.rateLimitHits.WithLabelValues(route).Inc()
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop drops every observation.
type Nop struct{}

func (Nop) RecordRequest(string, int, time.Duration) {}
func (Nop) RecordTransition(models.Stage)            {}
func (Nop) RecordRateLimitHit(string)                {}
