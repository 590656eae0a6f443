package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPPublisher publishes notification events as JSON to a RabbitMQ queue so
// downstream consumers can react to alerts and reminders. The connection is
// established lazily and re-dialed after a publish failure.
type AMQPPublisher struct {
	m       sync.Mutex
	logger  *slog.Logger
	url     string
	queue   string
	conn    *amqp.Connection
	channel *amqp.Channel
}

// AMQPConfig holds the publisher configuration.
type AMQPConfig struct {
	Logger *slog.Logger

	// URL is the RabbitMQ connection string.
	URL string

	// Queue is the durable queue events are published to.
	Queue string
}

// event is the wire format for published notifications.
type event struct {
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	SentAt  time.Time `json:"sentAt"`
}

// NewAMQPPublisher creates a publisher. No connection is made until the
// first send.
func NewAMQPPublisher(cfg *AMQPConfig) (*AMQPPublisher, error) {
	if cfg == nil {
		return nil, errors.New("amqp config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.URL == "" {
		return nil, errors.New("amqp URL cannot be empty")
	}

	if cfg.Queue == "" {
		return nil, errors.New("queue name cannot be empty")
	}

	return &AMQPPublisher{
		logger: cfg.Logger,
		url:    cfg.URL,
		queue:  cfg.Queue,
	}, nil
}

// ensureChannel dials the broker and declares the queue when needed.
// Callers must hold the mutex.
func (p *AMQPPublisher) ensureChannel() error {
	if p.channel != nil && !p.conn.IsClosed() {
		return nil
	}

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("failed to connect to broker: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	if _, err := channel.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	p.conn = conn
	p.channel = channel
	p.logger.Info("connected to broker", "queue", p.queue)
	return nil
}

// Send publishes the notification event to the queue.
func (p *AMQPPublisher) Send(ctx context.Context, subject, body string) error {
	data, err := json.Marshal(event{
		Subject: subject,
		Body:    body,
		SentAt:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	p.m.Lock()
	defer p.m.Unlock()

	if err := p.ensureChannel(); err != nil {
		return err
	}

	err = p.channel.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        data,
	})
	if err != nil {
		// Drop the connection so the next send re-dials.
		p.reset()
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// reset discards the current connection. Callers must hold the mutex.
func (p *AMQPPublisher) reset() {
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn = nil
	p.channel = nil
}

// Close shuts down the broker connection.
func (p *AMQPPublisher) Close() error {
	p.m.Lock()
	defer p.m.Unlock()

	if p.conn == nil {
		return nil
	}

	if err := p.conn.Close(); err != nil {
		return fmt.Errorf("failed to close broker connection: %w", err)
	}
	p.conn = nil
	p.channel = nil
	return nil
}

// Ensure AMQPPublisher implements Notifier.
var _ Notifier = (*AMQPPublisher)(nil)
