package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"procodus.dev/machine-monitor/internal/notify"
	"procodus.dev/machine-monitor/internal/server"
	"procodus.dev/machine-monitor/internal/store"
	"procodus.dev/machine-monitor/pkg/metrics"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the monitor API server",
	Long: `Run the monitor API server that:
- Serves the REST API for machines and vital readings
- Evaluates vital readings against machine thresholds
- Sends abnormal-vital alerts and maintenance reminders
- Persists state to a JSON snapshot file or PostgreSQL`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)

	// Server-specific flags
	serverCmd.Flags().Int("http-port", 8080, "HTTP server port")
	serverCmd.Flags().String("store-backend", "json", "storage backend (json, postgres)")
	serverCmd.Flags().String("data-file", "data/machines.json", "JSON snapshot file path")
	serverCmd.Flags().String("db-host", "localhost", "PostgreSQL host")
	serverCmd.Flags().Int("db-port", 5432, "PostgreSQL port")
	serverCmd.Flags().String("db-user", "postgres", "PostgreSQL user")
	serverCmd.Flags().String("db-password", "", "PostgreSQL password")
	serverCmd.Flags().String("db-name", "machines", "PostgreSQL database name")
	serverCmd.Flags().String("db-sslmode", "disable", "PostgreSQL SSL mode")
	serverCmd.Flags().Duration("alert-gap", 30*time.Minute, "Minimum gap between abnormal alerts per machine")
	serverCmd.Flags().Duration("reminder-interval", 60*time.Second, "Maintenance reminder sweep interval")
	serverCmd.Flags().Float64("reminder-lookahead-days", 7, "Days before the due date reminders start")
	serverCmd.Flags().String("mail-host", "", "SMTP host (empty simulates sends)")
	serverCmd.Flags().Int("mail-port", 587, "SMTP port")
	serverCmd.Flags().String("mail-user", "", "SMTP username")
	serverCmd.Flags().String("mail-password", "", "SMTP password")
	serverCmd.Flags().Bool("mail-tls", true, "Require TLS for SMTP")
	serverCmd.Flags().String("mail-from", "monitor@localhost", "Alert sender address")
	serverCmd.Flags().String("mail-to", "", "Alert recipient address (empty skips notifications)")
	serverCmd.Flags().String("amqp-url", "", "RabbitMQ URL for notification events (empty disables)")
	serverCmd.Flags().String("amqp-queue", "machine-alerts", "RabbitMQ queue for notification events")

	// Bind flags to viper
	_ = viper.BindPFlag("server.port", serverCmd.Flags().Lookup("http-port"))
	_ = viper.BindPFlag("store.backend", serverCmd.Flags().Lookup("store-backend"))
	_ = viper.BindPFlag("store.json.path", serverCmd.Flags().Lookup("data-file"))
	_ = viper.BindPFlag("store.db.host", serverCmd.Flags().Lookup("db-host"))
	_ = viper.BindPFlag("store.db.port", serverCmd.Flags().Lookup("db-port"))
	_ = viper.BindPFlag("store.db.user", serverCmd.Flags().Lookup("db-user"))
	_ = viper.BindPFlag("store.db.password", serverCmd.Flags().Lookup("db-password"))
	_ = viper.BindPFlag("store.db.name", serverCmd.Flags().Lookup("db-name"))
	_ = viper.BindPFlag("store.db.sslmode", serverCmd.Flags().Lookup("db-sslmode"))
	_ = viper.BindPFlag("alerts.gap", serverCmd.Flags().Lookup("alert-gap"))
	_ = viper.BindPFlag("reminder.interval", serverCmd.Flags().Lookup("reminder-interval"))
	_ = viper.BindPFlag("reminder.lookahead-days", serverCmd.Flags().Lookup("reminder-lookahead-days"))
	_ = viper.BindPFlag("notify.mail.host", serverCmd.Flags().Lookup("mail-host"))
	_ = viper.BindPFlag("notify.mail.port", serverCmd.Flags().Lookup("mail-port"))
	_ = viper.BindPFlag("notify.mail.user", serverCmd.Flags().Lookup("mail-user"))
	_ = viper.BindPFlag("notify.mail.password", serverCmd.Flags().Lookup("mail-password"))
	_ = viper.BindPFlag("notify.mail.tls", serverCmd.Flags().Lookup("mail-tls"))
	_ = viper.BindPFlag("notify.mail.from", serverCmd.Flags().Lookup("mail-from"))
	_ = viper.BindPFlag("notify.mail.to", serverCmd.Flags().Lookup("mail-to"))
	_ = viper.BindPFlag("notify.amqp.url", serverCmd.Flags().Lookup("amqp-url"))
	_ = viper.BindPFlag("notify.amqp.queue", serverCmd.Flags().Lookup("amqp-queue"))
}

func runServer(_ *cobra.Command, _ []string) error {
	logger := GetLogger()
	logger.Info("starting monitor server")

	// Select the storage backend
	var (
		st  store.Store
		err error
	)
	backend := viper.GetString("store.backend")
	switch backend {
	case "postgres":
		st, err = store.NewGormStore(&store.GormStoreConfig{
			Logger:   logger,
			Host:     viper.GetString("store.db.host"),
			Port:     viper.GetInt("store.db.port"),
			User:     viper.GetString("store.db.user"),
			Password: viper.GetString("store.db.password"),
			DBName:   viper.GetString("store.db.name"),
			SSLMode:  viper.GetString("store.db.sslmode"),
		})
	case "json":
		st, err = store.NewJSONStore(&store.JSONStoreConfig{
			Logger: logger,
			Path:   viper.GetString("store.json.path"),
		})
	default:
		return fmt.Errorf("unknown store backend: %s", backend)
	}
	if err != nil {
		logger.Error("failed to initialize store", "error", err)
		return err
	}

	// Build the notifier chain
	mailer, err := notify.NewMailer(&notify.MailerConfig{
		Logger:   logger,
		Host:     viper.GetString("notify.mail.host"),
		Port:     viper.GetInt("notify.mail.port"),
		Username: viper.GetString("notify.mail.user"),
		Password: viper.GetString("notify.mail.password"),
		TLS:      viper.GetBool("notify.mail.tls"),
		From:     viper.GetString("notify.mail.from"),
		To:       viper.GetString("notify.mail.to"),
	})
	if err != nil {
		logger.Error("failed to create mailer", "error", err)
		return err
	}

	targets := []notify.Notifier{mailer}
	if amqpURL := viper.GetString("notify.amqp.url"); amqpURL != "" {
		publisher, err := notify.NewAMQPPublisher(&notify.AMQPConfig{
			Logger: logger,
			URL:    amqpURL,
			Queue:  viper.GetString("notify.amqp.queue"),
		})
		if err != nil {
			logger.Error("failed to create event publisher", "error", err)
			return err
		}
		defer func() { _ = publisher.Close() }()
		targets = append(targets, publisher)
	}
	notifier := notify.NewFanout(logger, targets...)

	config := &server.ServerConfig{
		Logger:                logger,
		Store:                 st,
		Notifier:              notifier,
		HTTPPort:              viper.GetInt("server.port"),
		AlertGap:              viper.GetDuration("alerts.gap"),
		ReminderInterval:      viper.GetDuration("reminder.interval"),
		ReminderLookaheadDays: viper.GetFloat64("reminder.lookahead-days"),
		Metrics:               metrics.NewServerMetrics("machine_monitor"),
	}

	srv, err := server.NewServer(config)
	if err != nil {
		logger.Error("failed to create server", "error", err)
		return err
	}

	logger.Info("server configuration",
		"http_port", config.HTTPPort,
		"store_backend", backend,
		"alert_gap", config.AlertGap,
		"reminder_interval", config.ReminderInterval,
		"reminder_lookahead_days", config.ReminderLookaheadDays,
	)

	if err := srv.Run(context.Background()); err != nil {
		logger.Error("server error", "error", err)
		return err
	}

	logger.Info("server stopped")
	return nil
}
