package alerts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"procodus.dev/machine-monitor/internal/notify"
	"procodus.dev/machine-monitor/internal/store"
	"procodus.dev/machine-monitor/pkg/metrics"
)

// DefaultGap is the minimum time between two abnormal alerts for the same
// machine.
const DefaultGap = 30 * time.Minute

// Dispatcher runs the threshold evaluation for ingested vitals and sends
// alert notifications subject to the per-machine re-send gap.
type Dispatcher struct {
	logger   *slog.Logger
	store    store.Store
	notifier notify.Notifier
	gap      time.Duration
	metrics  *metrics.ServerMetrics // Optional metrics
	now      func() time.Time
}

// DispatcherConfig holds the configuration for a Dispatcher.
type DispatcherConfig struct {
	Logger   *slog.Logger
	Store    store.Store
	Notifier notify.Notifier

	// Gap is the minimum time between alerts for one machine. Zero selects
	// DefaultGap.
	Gap time.Duration

	// Metrics is the optional Prometheus metrics collector.
	Metrics *metrics.ServerMetrics
}

// NewDispatcher creates a dispatcher from the given configuration.
func NewDispatcher(cfg *DispatcherConfig) (*Dispatcher, error) {
	if cfg == nil {
		return nil, errors.New("dispatcher config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.Store == nil {
		return nil, errors.New("store cannot be nil")
	}

	if cfg.Notifier == nil {
		return nil, errors.New("notifier cannot be nil")
	}

	gap := cfg.Gap
	if gap <= 0 {
		gap = DefaultGap
	}

	return &Dispatcher{
		logger:   cfg.Logger,
		store:    cfg.Store,
		notifier: cfg.Notifier,
		gap:      gap,
		metrics:  cfg.Metrics,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// HandleVital evaluates the ingested reading and, when abnormal and outside
// the re-send gap, sends an alert and stamps the machine. Notification
// failures are logged and never propagated; the evaluation is returned to
// the ingestion path either way.
func (d *Dispatcher) HandleVital(ctx context.Context, machine store.Machine, vital store.Vital) Evaluation {
	eval := Evaluate(vital, machine.Thresholds)
	if !eval.Abnormal {
		return eval
	}

	if d.metrics != nil {
		d.metrics.AbnormalReadings.WithLabelValues(machine.ID).Inc()
	}

	d.logger.Warn("abnormal vital reading",
		"machine_id", machine.ID,
		"machine_name", machine.Name,
		"reasons", strings.Join(eval.Reasons, "; "),
	)

	now := d.now()
	if machine.LastAbnormalAlertSent != nil && now.Sub(*machine.LastAbnormalAlertSent) <= d.gap {
		d.logger.Debug("alert suppressed inside re-send gap",
			"machine_id", machine.ID,
			"last_sent", machine.LastAbnormalAlertSent,
		)
		return eval
	}

	subject := fmt.Sprintf("Abnormal vitals: %s", machine.Name)
	body := fmt.Sprintf("Machine %s (%s) reported abnormal vitals at %s:\n%s",
		machine.Name,
		machine.ID,
		vital.Timestamp.Format(time.RFC3339),
		strings.Join(eval.Reasons, "\n"),
	)

	if err := d.notifier.Send(ctx, subject, body); err != nil {
		d.logger.Error("failed to send alert notification",
			"machine_id", machine.ID,
			"error", err,
		)
	} else if d.metrics != nil {
		d.metrics.AlertsSent.Inc()
	}

	// The stamp covers simulated sends too, so an unconfigured transport
	// still honors the gap.
	if err := d.store.MarkAlertSent(ctx, machine.ID, now); err != nil {
		d.logger.Error("failed to stamp alert time",
			"machine_id", machine.ID,
			"error", err,
		)
	}

	return eval
}
