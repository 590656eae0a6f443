// Package reminder runs the periodic maintenance reminder sweep.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"procodus.dev/machine-monitor/internal/notify"
	"procodus.dev/machine-monitor/internal/store"
	"procodus.dev/machine-monitor/pkg/metrics"
)

const (
	// DefaultInterval is the polling cadence of the sweep. It is a
	// cadence, not a precise scheduler.
	DefaultInterval = 60 * time.Second

	// DefaultLookaheadDays is how far ahead of the due date reminders
	// start.
	DefaultLookaheadDays = 7

	// resendGap is the minimum time between two reminders for the same
	// machine.
	resendGap = 24 * time.Hour
)

// ShouldRemind reports whether a reminder is due for the machine at the
// given time. A machine qualifies when its maintenance date lies within the
// lookahead window (overdue dates are negative and always qualify) and
// either no reminder was ever sent or a full day has elapsed since the last
// one.
func ShouldRemind(m store.Machine, now time.Time, lookaheadDays float64) bool {
	daysUntilDue := m.NextMaintenanceDate.Sub(now).Hours() / 24
	if daysUntilDue > lookaheadDays {
		return false
	}

	if m.LastMaintenanceReminderSent == nil {
		return true
	}
	return now.Sub(*m.LastMaintenanceReminderSent) >= resendGap
}

// Loop owns the recurring maintenance sweep. It is started by the server
// lifecycle and stops cleanly on context cancellation.
type Loop struct {
	logger        *slog.Logger
	store         store.Store
	notifier      notify.Notifier
	interval      time.Duration
	lookaheadDays float64
	metrics       *metrics.ServerMetrics // Optional metrics
	now           func() time.Time
}

// LoopConfig holds the configuration for a Loop.
type LoopConfig struct {
	Logger   *slog.Logger
	Store    store.Store
	Notifier notify.Notifier

	// Interval between sweeps. Zero selects DefaultInterval.
	Interval time.Duration

	// LookaheadDays is the reminder window. Zero selects
	// DefaultLookaheadDays.
	LookaheadDays float64

	// Metrics is the optional Prometheus metrics collector.
	Metrics *metrics.ServerMetrics
}

// NewLoop creates a reminder loop from the given configuration.
func NewLoop(cfg *LoopConfig) (*Loop, error) {
	if cfg == nil {
		return nil, errors.New("loop config cannot be nil")
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

	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	lookahead := cfg.LookaheadDays
	if lookahead <= 0 {
		lookahead = DefaultLookaheadDays
	}

	return &Loop{
		logger:        cfg.Logger,
		store:         cfg.Store,
		notifier:      cfg.Notifier,
		interval:      interval,
		lookaheadDays: lookahead,
		metrics:       cfg.Metrics,
		now:           func() time.Time { return time.Now().UTC() },
	}, nil
}

// Run sweeps on the configured interval until the context is canceled.
func (l *Loop) Run(ctx context.Context) {
	l.logger.Info("starting reminder loop",
		"interval", l.interval,
		"lookahead_days", l.lookaheadDays,
	)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("reminder loop stopped")
			return
		case <-ticker.C:
			l.Sweep(ctx)
		}
	}
}

// Sweep runs one reminder pass over all machines. Notification and stamping
// failures are logged per machine and never abort the pass.
func (l *Loop) Sweep(ctx context.Context) {
	if l.metrics != nil {
		l.metrics.ReminderSweeps.Inc()
		timer := prometheus.NewTimer(l.metrics.ReminderSweepTime)
		defer timer.ObserveDuration()
	}

	machines, err := l.store.ListMachines(ctx)
	if err != nil {
		l.logger.Error("failed to list machines for reminder sweep", "error", err)
		return
	}

	now := l.now()
	sent := 0
	for _, machine := range machines {
		if !ShouldRemind(machine, now, l.lookaheadDays) {
			continue
		}

		l.remind(ctx, machine, now)
		sent++
	}

	l.logger.Debug("reminder sweep completed",
		"machines", len(machines),
		"reminders", sent,
	)
}

func (l *Loop) remind(ctx context.Context, machine store.Machine, now time.Time) {
	daysUntilDue := machine.NextMaintenanceDate.Sub(now).Hours() / 24

	subject := fmt.Sprintf("Maintenance due: %s", machine.Name)
	body := fmt.Sprintf("Machine %s (%s) is due for maintenance on %s (%.1f days from now).",
		machine.Name,
		machine.ID,
		machine.NextMaintenanceDate.Format("2006-01-02"),
		daysUntilDue,
	)

	if err := l.notifier.Send(ctx, subject, body); err != nil {
		l.logger.Error("failed to send maintenance reminder",
			"machine_id", machine.ID,
			"error", err,
		)
	} else if l.metrics != nil {
		l.metrics.RemindersSent.Inc()
	}

	if err := l.store.MarkReminderSent(ctx, machine.ID, now); err != nil {
		l.logger.Error("failed to stamp reminder time",
			"machine_id", machine.ID,
			"error", err,
		)
	}
}
