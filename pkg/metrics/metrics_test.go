package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordsOutcomes(t *testing.T) {
	m, err := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	m.ObserveSubmission("Titan", true, 120*time.Millisecond)
	m.ObserveSubmission("Titan", false, 80*time.Millisecond)
	m.ObserveSubmission("Quasar", true, 50*time.Millisecond)
	m.ObserveHealth("Rsync", false)
	m.SetHealthy(3)
	m.SetCoverage(0.96)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Submissions.WithLabelValues("Titan", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Submissions.WithLabelValues("Titan", OutcomeFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HealthChecks.WithLabelValues("Rsync", OutcomeFailure)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.HealthyBuilders))
	assert.InDelta(t, 0.96, testutil.ToFloat64(m.Coverage), 1e-9)
	assert.Equal(t, 2, testutil.CollectAndCount(m.SubmitLatency))
}

func TestMetrics_DoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()

	_, err := NewMetrics(reg)
	require.NoError(t, err)

	_, err = NewMetrics(reg)
	assert.Error(t, err)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveHealth("x", true)
		m.ObserveSubmission("x", true, time.Second)
		m.SetHealthy(1)
		m.SetCoverage(1)
	})
}
