package telemetry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_NilRegistererIsNoop(t *testing.T) {
	m, err := NewMetrics(nil)
	require.NoError(t, err)
	assert.Nil(t, m)

	assert.NotPanics(t, func() {
		m.RecordOperation("mirror", "mirrored", time.Second)
		m.RecordRateLimitWait("github")
		m.SetRateLimitRemaining("github", 10)
		m.RecordRetry("mirror")
		m.RecordCycle("ok")
	})
}

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	m.RecordOperation("mirror", "mirrored", 2*time.Second)
	m.RecordOperation("mirror", "mirrored", time.Second)
	m.RecordOperation("mirror", "failed", time.Second)
	m.SetRateLimitRemaining("github", 42)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.operations.WithLabelValues("mirror", "mirrored")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("mirror", "failed")))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.rateRemaining.WithLabelValues("github")))

	_, err = NewMetrics(reg)
	assert.Error(t, err, "registering twice collides")
}
