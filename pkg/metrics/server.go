package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ServerMetrics contains Prometheus metrics for the API server, the alert
// dispatcher and the reminder loop.
type ServerMetrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight *prometheus.GaugeVec
	VitalsIngested       *prometheus.CounterVec
	AbnormalReadings     *prometheus.CounterVec
	AlertsSent           prometheus.Counter
	RemindersSent        prometheus.Counter
	ReminderSweeps       prometheus.Counter
	ReminderSweepTime    prometheus.Histogram
}

// NewServerMetrics creates and registers the server metric set.
func NewServerMetrics(namespace string) *ServerMetrics {
	m := &ServerMetrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_in_flight",
				Help:      "Number of HTTP requests currently being processed",
			},
			[]string{"method"},
		),
		VitalsIngested: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "vitals",
				Name:      "ingested_total",
				Help:      "Total number of vital readings ingested",
			},
			[]string{"machine_id"},
		),
		AbnormalReadings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "vitals",
				Name:      "abnormal_total",
				Help:      "Total number of abnormal vital readings",
			},
			[]string{"machine_id"},
		),
		AlertsSent: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "alerts",
				Name:      "sent_total",
				Help:      "Total number of abnormal-vital alert notifications sent",
			},
		),
		RemindersSent: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "reminders",
				Name:      "sent_total",
				Help:      "Total number of maintenance reminder notifications sent",
			},
		),
		ReminderSweeps: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "reminders",
				Name:      "sweeps_total",
				Help:      "Total number of maintenance reminder sweeps",
			},
		),
		ReminderSweepTime: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "reminders",
				Name:      "sweep_duration_seconds",
				Help:      "Duration of maintenance reminder sweeps",
				Buckets:   prometheus.DefBuckets,
			},
		),
	}

	MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.VitalsIngested,
		m.AbnormalReadings,
		m.AlertsSent,
		m.RemindersSent,
		m.ReminderSweeps,
		m.ReminderSweepTime,
	)

	return m
}
