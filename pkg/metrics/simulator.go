package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SimulatorMetrics contains Prometheus metrics for the simulator service.
type SimulatorMetrics struct {
	MachinesSeeded  prometheus.Counter
	ReadingsPosted  *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewSimulatorMetrics creates and registers the simulator metric set.
func NewSimulatorMetrics(namespace string) *SimulatorMetrics {
	m := &SimulatorMetrics{
		MachinesSeeded: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "simulator",
				Name:      "machines_seeded_total",
				Help:      "Total number of demo machines created",
			},
		),
		ReadingsPosted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "simulator",
				Name:      "readings_posted_total",
				Help:      "Total number of vital readings posted to the API",
			},
			[]string{"status"}, // status: success, error
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "simulator",
				Name:      "request_duration_seconds",
				Help:      "Duration of API requests issued by the simulator",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
	}

	MustRegister(
		m.MachinesSeeded,
		m.ReadingsPosted,
		m.RequestDuration,
	)

	return m
}
