package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Timer records timer state changes. A nil *Timer is a no-op.
type Timer struct {
	transitions        *prometheus.CounterVec
	stoppedHours       prometheus.Histogram
	attachmentFailures prometheus.Counter
}

// NewTimer registers the timer collectors on reg
func NewTimer(reg prometheus.Registerer) *Timer {
	m := &Timer{
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "timer_transitions_total",
				Help: "Total number of timer actions by outcome",
			},
			[]string{"action"},
		),
		stoppedHours: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "timer_stopped_hours",
				Help:    "Worked hours recorded when a timer is stopped",
				Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 12, 24},
			},
		),
		attachmentFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "timer_attachment_failures_total",
				Help: "Attachments that could not be stored while stopping a timer",
			},
		),
	}

	reg.MustRegister(m.transitions, m.stoppedHours, m.attachmentFailures)

	return m
}

func (m *Timer) Transition(action string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(action).Inc()
}

func (m *Timer) Stopped(hours float64) {
	if m == nil {
		return
	}
	m.stoppedHours.Observe(hours)
}

func (m *Timer) AttachmentFailed() {
	if m == nil {
		return
	}
	m.attachmentFailures.Inc()
}
