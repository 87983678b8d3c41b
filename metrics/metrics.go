// Package metrics records gateway, vision and HTTP metrics with Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/archmesh/core"
	"github.com/hupe1980/archmesh/gateway"
	"github.com/hupe1980/archmesh/model"
	"github.com/hupe1980/archmesh/vision"
)

const namespace = "archmesh"

// Recorder owns a private registry so several instances can coexist.
type Recorder struct {
	registry *prometheus.Registry

	ProviderAttempts *prometheus.CounterVec
	AttemptDuration  *prometheus.HistogramVec
	Invocations      *prometheus.CounterVec
	RateGateWait     *prometheus.HistogramVec
	Analyses         *prometheus.CounterVec
	AnalysisDuration prometheus.Histogram
	RequestCount     *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	ActiveStreams    prometheus.Gauge
}

var (
	_ gateway.Observer = (*Recorder)(nil)
	_ vision.Observer  = (*Recorder)(nil)
)

// New creates a recorder with Go runtime and process collectors registered.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Recorder{
		registry: reg,
		ProviderAttempts: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_attempts_total",
				Help:      "Provider calls by role, provider and outcome (ok or error kind)",
			},
			[]string{"role", "provider", "outcome"},
		),
		AttemptDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "provider_attempt_duration_seconds",
				Help:      "Duration of single provider calls",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
			},
			[]string{"provider"},
		),
		Invocations: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "invocations_total",
				Help:      "Completed role invocations",
			},
			[]string{"role", "degraded"},
		),
		RateGateWait: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "rate_gate_wait_seconds",
				Help:      "Time spent waiting for the per-role rate gate",
				Buckets:   []float64{0, 0.1, 0.25, 0.5, 1, 2, 4},
			},
			[]string{"role"},
		),
		Analyses: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "analyses_total",
				Help:      "Room analyses computed (cache misses)",
			},
			[]string{"fallback"},
		),
		AnalysisDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "analysis_duration_seconds",
				Help:      "Vision pipeline duration",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
			},
		),
		RequestCount: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
			},
			[]string{"method", "route"},
		),
		ActiveStreams: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_streams",
				Help:      "Open websocket streams",
			},
		),
	}
}

// ObserveAttempt implements gateway.Observer.
func (r *Recorder) ObserveAttempt(role core.AgentRole, provider string, kind model.Kind, d time.Duration) {
	outcome := "ok"
	if kind != "" {
		outcome = string(kind)
	}
	r.ProviderAttempts.WithLabelValues(string(role), provider, outcome).Inc()
	r.AttemptDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// ObserveInvoke implements gateway.Observer.
func (r *Recorder) ObserveInvoke(role core.AgentRole, degraded bool, wait time.Duration) {
	r.Invocations.WithLabelValues(string(role), strconv.FormatBool(degraded)).Inc()
	r.RateGateWait.WithLabelValues(string(role)).Observe(wait.Seconds())
}

// ObserveAnalysis implements vision.Observer.
func (r *Recorder) ObserveAnalysis(fallback bool, d time.Duration) {
	r.Analyses.WithLabelValues(strconv.FormatBool(fallback)).Inc()
	r.AnalysisDuration.Observe(d.Seconds())
}

// ObserveRequest records one HTTP request.
func (r *Recorder) ObserveRequest(method, route string, status int, d time.Duration) {
	r.RequestCount.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.RequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
