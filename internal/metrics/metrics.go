// Package metrics exposes run progress as Prometheus collectors.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "stageq"

type Metrics struct {
	registry *prometheus.Registry

	activeVUs     prometheus.Gauge
	targetVUs     prometheus.Gauge
	iterations    prometheus.Counter
	requestErrors prometheus.Counter
	checks        *prometheus.CounterVec
	duration      prometheus.Histogram
}

// New builds the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		activeVUs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_vus",
			Help:      "Virtual users currently running iterations.",
		}),
		targetVUs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "target_vus",
			Help:      "Virtual users the stage schedule asks for.",
		}),
		iterations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "iterations_total",
			Help:      "Completed iterations.",
		}),
		requestErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "request_errors_total",
			Help:      "Requests that failed without a response (network errors, timeouts).",
		}),
		checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checks_total",
			Help:      "Check outcomes by check name.",
		}, []string{"check", "result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Request latency.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 16),
		}),
	}
	reg.MustRegister(m.activeVUs, m.targetVUs, m.iterations, m.requestErrors, m.checks, m.duration)
	return m
}

func (m *Metrics) SetActiveVUs(n int) {
	if m == nil {
		return
	}
	m.activeVUs.Set(float64(n))
}

func (m *Metrics) SetTargetVUs(n int) {
	if m == nil {
		return
	}
	m.targetVUs.Set(float64(n))
}

// ObserveIteration records one finished request.
func (m *Metrics) ObserveIteration(latency time.Duration, failed bool) {
	if m == nil {
		return
	}
	m.iterations.Inc()
	if failed {
		m.requestErrors.Inc()
	}
	m.duration.Observe(latency.Seconds())
}

func (m *Metrics) ObserveCheck(name string, passed bool) {
	if m == nil {
		return
	}
	result := "fail"
	if passed {
		result = "pass"
	}
	m.checks.WithLabelValues(name, result).Inc()
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
