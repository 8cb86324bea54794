package tool

import (
	"github.com/c360studio/longform/resilience"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes tool invocation telemetry as prometheus collectors.
type Metrics struct {
	invocations *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	retries     *prometheus.CounterVec
	breaker     *prometheus.GaugeVec
}

// NewMetrics creates tool metrics registered against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		invocations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "longform",
			Subsystem: "tool",
			Name:      "invocations_total",
			Help:      "Tool invocations by tool name and outcome.",
		}, []string{"tool", "outcome"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "longform",
			Subsystem: "tool",
			Name:      "invocation_duration_seconds",
			Help:      "Wall-clock tool invocation duration.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2.5, 12),
		}, []string{"tool"}),
		retries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "longform",
			Subsystem: "tool",
			Name:      "retries_total",
			Help:      "Retry attempts by tool name.",
		}, []string{"tool"}),
		breaker: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "longform",
			Subsystem: "tool",
			Name:      "breaker_state",
			Help:      "Circuit breaker state per tool (0=closed, 1=half-open, 2=open).",
		}, []string{"tool"}),
	}
}

// observe records a completed invocation.
func (m *Metrics) observe(t *Tool, res Result) {
	outcome := "success"
	if !res.Success {
		outcome = "failure"
	}
	m.invocations.WithLabelValues(t.Name, outcome).Inc()
	m.duration.WithLabelValues(t.Name).Observe(float64(res.ExecutionTimeMs) / 1000)
	if res.Retries > 0 {
		m.retries.WithLabelValues(t.Name).Add(float64(res.Retries))
	}
	if t.Breaker != nil {
		m.breaker.WithLabelValues(t.Name).Set(breakerGaugeValue(t.Breaker.Status().State))
	}
}

func breakerGaugeValue(state resilience.BreakerState) float64 {
	switch state {
	case resilience.BreakerHalfOpen:
		return 1
	case resilience.BreakerOpen:
		return 2
	default:
		return 0
	}
}
