package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipelineMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(Config{ServiceName: "tixsync", Environment: "test"}, reg)
	require.NoError(t, err)

	m.IncMatched("exact")
	m.IncMatched("exact")
	m.IncMatched("fuzzy")
	m.IncUnmatched()
	m.IncDelivery(DeliveryOutcomeFailed)
	m.AddParseErrors(3)
	m.ObserveReport("completed", 2*time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.showsMatched.WithLabelValues("exact")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.showsMatched.WithLabelValues("fuzzy")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.showsUnmatched))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.webhookDeliveries.WithLabelValues(DeliveryOutcomeFailed)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.parseErrors))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reportsProcessed.WithLabelValues("completed")))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *PipelineMetrics
	assert.NotPanics(t, func() {
		m.IncMatched("ai")
		m.IncUnmatched()
		m.IncDelivery(DeliveryOutcomeDelivered)
		m.IncDeliveryAttempt()
		m.IncAISuggestion(AIOutcomeError)
		m.ObserveReport("failed", time.Second)
		m.IncJobRun("recover_stale_runs", JobOutcomeSuccess)
		m.AddRecoveredRuns(2)
	})
}

func TestNewRejectsDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(Config{}, reg)
	require.NoError(t, err)

	_, err = New(Config{}, reg)
	assert.Error(t, err)
}

func TestSchedulerCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(Config{}, reg)
	require.NoError(t, err)

	m.IncJobRun("recover_stale_runs", JobOutcomeSuccess)
	m.AddRecoveredRuns(3)
	m.AddRecoveredRuns(0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.schedulerJobs.WithLabelValues("recover_stale_runs", JobOutcomeSuccess)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.runsRecovered))
}
