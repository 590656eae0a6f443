package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/wneessen/go-mail"
)

// Mailer sends notifications over SMTP. An unconfigured recipient or
// transport degrades to a logged no-op rather than an error.
type Mailer struct {
	logger *slog.Logger
	client *mail.Client
	from   string
	to     string
}

// MailerConfig holds the SMTP configuration.
type MailerConfig struct {
	Logger *slog.Logger

	// Host is the SMTP server. Empty means no transport is configured and
	// sends are simulated.
	Host     string
	Port     int
	Username string
	Password string

	// TLS enforces a TLS session; otherwise TLS is used when offered.
	TLS bool

	// From is the sender address.
	From string

	// To is the alert recipient. Empty means notifications are skipped.
	To string
}

// NewMailer creates a mailer from the given configuration.
func NewMailer(cfg *MailerConfig) (*Mailer, error) {
	if cfg == nil {
		return nil, errors.New("mailer config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	m := &Mailer{
		logger: cfg.Logger,
		from:   cfg.From,
		to:     cfg.To,
	}

	if cfg.Host == "" {
		return m, nil
	}

	tlsPolicy := mail.TLSOpportunistic
	if cfg.TLS {
		tlsPolicy = mail.TLSMandatory
	}

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(tlsPolicy),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail client: %w", err)
	}
	m.client = client

	return m, nil
}

// Send delivers the notification by email. Missing recipient or transport
// configuration results in a logged no-op.
func (m *Mailer) Send(ctx context.Context, subject, body string) error {
	if m.to == "" {
		m.logger.Info("no alert recipient configured, skipping notification",
			"subject", subject,
		)
		return nil
	}

	if m.client == nil {
		m.logger.Info("mail transport not configured, simulated send",
			"subject", subject,
			"to", m.to,
		)
		return nil
	}

	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(m.to); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}

	m.logger.Info("notification sent",
		"subject", subject,
		"to", m.to,
	)
	return nil
}

// Ensure Mailer implements Notifier.
var _ Notifier = (*Mailer)(nil)
