// Package metrics exposes Prometheus collectors for health checks and bundle
// submissions.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "bundloor"

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics holds the collectors. A nil *Metrics is a valid no-op.
type Metrics struct {
	Submissions     *prometheus.CounterVec
	HealthChecks    *prometheus.CounterVec
	SubmitLatency   *prometheus.HistogramVec
	Coverage        prometheus.Gauge
	HealthyBuilders prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Bundle submissions by builder and outcome",
		}, []string{"builder", "outcome"}),
		HealthChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "health_checks_total",
			Help:      "Builder health checks by builder and outcome",
		}, []string{"builder", "outcome"}),
		SubmitLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "submit_latency_seconds",
			Help:      "Latency of bundle submissions per builder",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"builder"}),
		Coverage: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_coverage_ratio",
			Help:      "Market share covered by the last submission",
		}),
		HealthyBuilders: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "healthy_builders",
			Help:      "Healthy builders seen by the last health sweep",
		}),
	}

	collectors := []prometheus.Collector{
		m.Submissions, m.HealthChecks, m.SubmitLatency, m.Coverage, m.HealthyBuilders,
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func outcome(ok bool) string {
	if ok {
		return OutcomeSuccess
	}

	return OutcomeFailure
}

// ObserveHealth records one health check.
func (m *Metrics) ObserveHealth(builder string, healthy bool) {
	if m == nil {
		return
	}

	m.HealthChecks.WithLabelValues(builder, outcome(healthy)).Inc()
}

// ObserveSubmission records one submission and its latency.
func (m *Metrics) ObserveSubmission(builder string, success bool, latency time.Duration) {
	if m == nil {
		return
	}

	m.Submissions.WithLabelValues(builder, outcome(success)).Inc()
	m.SubmitLatency.WithLabelValues(builder).Observe(latency.Seconds())
}

// SetHealthy sets the healthy builder gauge.
func (m *Metrics) SetHealthy(n int) {
	if m == nil {
		return
	}

	m.HealthyBuilders.Set(float64(n))
}

// SetCoverage sets the coverage gauge.
func (m *Metrics) SetCoverage(coverage float64) {
	if m == nil {
		return
	}

	m.Coverage.Set(coverage)
}
