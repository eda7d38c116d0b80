package tally

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

func newMetrics(r prometheus.Registerer) *metrics {
	var m metrics

	m.operations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tally_operations_total",
		Help: "Counter operations by name and result",
	}, []string{"op", "result"})

	m.duration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tally_operation_duration_seconds",
		Help:    "Duration of counter units-of-work",
		Buckets: prometheus.ExponentialBuckets(0.00005, 2, 20),
	}, []string{"op"})

	r.MustRegister(m.operations, m.duration)
	return &m
}

// observe is safe to call on a nil receiver.
func (m *metrics) observe(op string, err error, d time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.operations.WithLabelValues(op, result).Inc()
	if d > 0 {
		m.duration.WithLabelValues(op).Observe(d.Seconds())
	}
}
