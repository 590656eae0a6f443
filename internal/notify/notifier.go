// Package notify delivers alert and reminder notifications. Delivery is
// best-effort: callers log failures and move on, so a slow or broken
// transport never blocks vital ingestion or reminder sweeps.
package notify

import (
	"context"
	"log/slog"
)

// Notifier sends a single notification. Implementations must be safe for
// concurrent use.
type Notifier interface {
	Send(ctx context.Context, subject, body string) error
}

// LogNotifier writes notifications to the log instead of delivering them.
// It is the fallback when no mail transport is configured.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a log-only notifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Send logs the notification and always succeeds.
func (n *LogNotifier) Send(_ context.Context, subject, body string) error {
	n.logger.Info("notification (log only)",
		"subject", subject,
		"body", body,
	)
	return nil
}

// fanout delivers to every target, absorbing individual failures.
type fanout struct {
	logger  *slog.Logger
	targets []Notifier
}

// NewFanout returns a notifier that delivers to all targets. Failures of
// individual targets are logged and never propagated.
func NewFanout(logger *slog.Logger, targets ...Notifier) Notifier {
	return &fanout{logger: logger, targets: targets}
}

// Send delivers the notification to every target.
func (f *fanout) Send(ctx context.Context, subject, body string) error {
	for _, t := range f.targets {
		if err := t.Send(ctx, subject, body); err != nil {
			f.logger.Error("notification delivery failed",
				"subject", subject,
				"error", err,
			)
		}
	}
	return nil
}

// Ensure implementations satisfy Notifier.
var (
	_ Notifier = (*LogNotifier)(nil)
	_ Notifier = (*fanout)(nil)
)
