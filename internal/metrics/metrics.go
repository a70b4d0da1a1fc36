// Package metrics exposes Prometheus metrics for generations, provider
// attempts, response recovery and the HTTP API.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"agenticos/internal/generation"
	"agenticos/internal/types"
)

const namespace = "agentic"

// Metrics holds every collector on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	GenerationsTotal   *prometheus.CounterVec
	GenerationDuration *prometheus.HistogramVec
	AttemptsTotal      *prometheus.CounterVec
	AttemptDuration    *prometheus.HistogramVec
	TokensTotal        *prometheus.CounterVec
	RecoveryTotal      *prometheus.CounterVec
	BracesAdded        prometheus.Counter
	InFlight           prometheus.Gauge

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

var _ generation.Observer = (*Metrics)(nil)

// New creates the collectors on a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		GenerationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "generation",
			Name:      "total",
			Help:      "Generations by agent and outcome",
		}, []string{"agent", "outcome"}), // outcome: ok, diagnostic, no_credential, cancelled, all_models_failed

		GenerationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "generation",
			Name:      "duration_seconds",
			Help:      "Wall time of successful generations",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"agent"}),

		AttemptsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "attempts_total",
			Help:      "Provider requests by model and status",
		}, []string{"provider", "model", "status"}),

		AttemptDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "attempt_duration_seconds",
			Help:      "Provider request duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		}, []string{"provider", "model"}),

		TokensTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "Tokens reported by providers",
		}, []string{"provider", "model", "type"}), // type: input/output

		RecoveryTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recovery",
			Name:      "total",
			Help:      "Recovered responses by extraction strategy and result",
		}, []string{"strategy", "result"}),

		BracesAdded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recovery",
			Name:      "braces_added_total",
			Help:      "Closing braces appended to truncated responses",
		}),

		InFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "generation",
			Name:      "in_flight",
			Help:      "Generations currently running",
		}),

		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),

		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.005, .01, .05, .1, .5, 1, 5, 30, 120, 600},
		}, []string{"method", "path"}),
	}
}

// Registry returns the registry backing these metrics.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// AttemptFinished implements generation.Observer.
func (m *Metrics) AttemptFinished(_ context.Context, _ types.GenerationRequest, a generation.Attempt) {
	p := string(a.Provider)
	m.AttemptsTotal.WithLabelValues(p, a.Model, attemptStatus(a)).Inc()
	m.AttemptDuration.WithLabelValues(p, a.Model).Observe(a.Duration.Seconds())
	if a.Succeeded() {
		m.TokensTotal.WithLabelValues(p, a.Model, "input").Add(float64(a.Usage.InputTokens))
		m.TokensTotal.WithLabelValues(p, a.Model, "output").Add(float64(a.Usage.OutputTokens))
	}
}

// GenerationFinished implements generation.Observer.
func (m *Metrics) GenerationFinished(_ context.Context, req types.GenerationRequest, res *generation.Result, err error) {
	agent := req.Agent.ID()
	if err != nil {
		m.GenerationsTotal.WithLabelValues(agent, generation.KindOf(err).String()).Inc()
		return
	}

	outcome, result := "ok", "parsed"
	if res.Diagnostic {
		outcome, result = "diagnostic", "diagnostic"
	}
	m.GenerationsTotal.WithLabelValues(agent, outcome).Inc()
	m.GenerationDuration.WithLabelValues(agent).Observe(res.Duration.Seconds())
	m.RecoveryTotal.WithLabelValues(string(res.Strategy), result).Inc()
	m.BracesAdded.Add(float64(res.BracesAdded))
}

// attemptStatus is "ok", the HTTP status code, "timeout", "cancelled" or "error".
func attemptStatus(a generation.Attempt) string {
	switch {
	case a.Succeeded():
		return "ok"
	case a.StatusCode != 0:
		return strconv.Itoa(a.StatusCode)
	case errors.Is(a.Err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(a.Err, context.Canceled):
		return "cancelled"
	default:
		return "error"
	}
}

// GinMiddleware records request counts and latency per route.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = "unknown"
		}
		method := c.Request.Method

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}
