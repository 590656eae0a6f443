// Package server provides the HTTP JSON API for the maintenance monitor and
// owns the reminder loop lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"procodus.dev/machine-monitor/internal/alerts"
	"procodus.dev/machine-monitor/internal/notify"
	"procodus.dev/machine-monitor/internal/reminder"
	"procodus.dev/machine-monitor/internal/store"
	"procodus.dev/machine-monitor/pkg/generator"
	"procodus.dev/machine-monitor/pkg/metrics"
)

// Server represents the API server.
type Server struct {
	logger     *slog.Logger
	store      store.Store
	notifier   notify.Notifier
	dispatcher *alerts.Dispatcher
	loop       *reminder.Loop
	httpServer *http.Server
	config     *ServerConfig
	metrics    *metrics.ServerMetrics

	genMu sync.Mutex
	gen   *generator.VitalGenerator
}

// ServerConfig holds the configuration for the Server.
type ServerConfig struct {
	Logger   *slog.Logger
	Store    store.Store
	Notifier notify.Notifier

	// HTTP server configuration
	HTTPPort int

	// AlertGap is the minimum time between abnormal alerts per machine.
	AlertGap time.Duration

	// ReminderInterval is the cadence of the maintenance sweep.
	ReminderInterval time.Duration

	// ReminderLookaheadDays is the reminder window.
	ReminderLookaheadDays float64

	// Metrics is the optional Prometheus metrics collector.
	Metrics *metrics.ServerMetrics
}

// NewServer creates a new API server instance.
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server config cannot be nil")
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

	if cfg.HTTPPort <= 0 {
		return nil, errors.New("HTTP port must be positive")
	}

	dispatcher, err := alerts.NewDispatcher(&alerts.DispatcherConfig{
		Logger:   cfg.Logger,
		Store:    cfg.Store,
		Notifier: cfg.Notifier,
		Gap:      cfg.AlertGap,
		Metrics:  cfg.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create alert dispatcher: %w", err)
	}

	loop, err := reminder.NewLoop(&reminder.LoopConfig{
		Logger:        cfg.Logger,
		Store:         cfg.Store,
		Notifier:      cfg.Notifier,
		Interval:      cfg.ReminderInterval,
		LookaheadDays: cfg.ReminderLookaheadDays,
		Metrics:       cfg.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create reminder loop: %w", err)
	}

	return &Server{
		logger:     cfg.Logger,
		store:      cfg.Store,
		notifier:   cfg.Notifier,
		dispatcher: dispatcher,
		loop:       loop,
		config:     cfg,
		metrics:    cfg.Metrics,
		gen:        generator.NewVitalGenerator(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Run starts the API server and the reminder loop and blocks until
// shutdown.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting API server")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	// Start the reminder loop
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.loop.Run(ctx)
	}()

	// Create HTTP server
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.HTTPPort),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("starting HTTP server", "address", s.httpServer.Addr)

	httpErr := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErr <- fmt.Errorf("HTTP server error: %w", err)
		}
		close(httpErr)
	}()

	s.logger.Info("API server started successfully")

	var runErr error
	select {
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context canceled")
	case err := <-httpErr:
		if err != nil {
			s.logger.Error("HTTP server error", "error", err)
			runErr = err
		}
	}

	cancel()
	wg.Wait()

	if err := s.Shutdown(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// Shutdown gracefully shuts down the HTTP server and closes the store.
func (s *Server) Shutdown() error {
	s.logger.Info("shutting down API server")

	var shutdownErr error

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("failed to shutdown HTTP server", "error", err)
			shutdownErr = fmt.Errorf("HTTP server shutdown error: %w", err)
		}
		s.logger.Info("HTTP server stopped")
	}

	if err := s.store.Close(); err != nil {
		s.logger.Error("failed to close store", "error", err)
		if shutdownErr == nil {
			shutdownErr = fmt.Errorf("store close error: %w", err)
		}
	}

	if shutdownErr != nil {
		return shutdownErr
	}

	s.logger.Info("API server shutdown completed successfully")
	return nil
}

// Handler builds the HTTP router for the API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /machines", s.handleListMachines)
	mux.HandleFunc("POST /machines", s.handleCreateMachine)
	mux.HandleFunc("PUT /machines/{id}", s.handleUpdateMachine)
	mux.HandleFunc("DELETE /machines/{id}", s.handleDeleteMachine)

	mux.HandleFunc("GET /machines/{id}/vitals", s.handleListVitals)
	mux.HandleFunc("POST /machines/{id}/vitals", s.handleAppendVital)
	mux.HandleFunc("POST /machines/{id}/vitals/simulate", s.handleSimulateVital)

	return s.instrument(mux)
}
