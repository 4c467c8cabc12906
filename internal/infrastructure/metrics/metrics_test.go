package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewTimer(reg)

	m.Transition("started")
	m.Transition("started")
	m.Transition("paused")
	m.AttachmentFailed()
	m.Stopped(1.5)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.transitions.WithLabelValues("started")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("paused")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.attachmentFailures))

	count, err := testutil.GatherAndCount(reg, "timer_stopped_hours")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNilTimerIsNoop(t *testing.T) {
	var m *Timer
	assert.NotPanics(t, func() {
		m.Transition("started")
		m.Stopped(1)
		m.AttachmentFailed()
	})
}
