package simulator

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"procodus.dev/machine-monitor/internal/store"
	"procodus.dev/machine-monitor/pkg/generator"
	"procodus.dev/machine-monitor/pkg/metrics"
)

// abnormalChance is the probability per tick that a worker injects an
// abnormal reading instead of a simulated one, so alert paths see traffic.
const abnormalChance = 0.05

// Server seeds demo machines and runs one worker per machine posting
// readings on the configured interval.
type Server struct {
	logger  *slog.Logger
	client  *Client
	config  *ServerConfig
	wg      sync.WaitGroup
	metrics *metrics.SimulatorMetrics
}

// ServerConfig holds the configuration for the simulator server.
type ServerConfig struct {
	// Logger is the structured logger
	Logger *slog.Logger
	// APIBaseURL is the address of the monitor API
	APIBaseURL string
	// MachineCount is the number of demo machines to seed
	MachineCount int
	// Interval is the time between posted readings per machine
	Interval time.Duration
	// Metrics is the optional Prometheus metrics collector
	Metrics *metrics.SimulatorMetrics
}

var (
	errInvalidMachineCount = errors.New("machine count must be greater than 0")
	errInvalidInterval     = errors.New("interval must be greater than 0")
	errLoggerRequired      = errors.New("logger is required")
	errBaseURLRequired     = errors.New("API base URL is required")
)

// NewServer creates a new simulator server with the given configuration.
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("simulator config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errLoggerRequired
	}

	if cfg.APIBaseURL == "" {
		return nil, errBaseURLRequired
	}

	if cfg.MachineCount <= 0 {
		return nil, errInvalidMachineCount
	}

	if cfg.Interval <= 0 {
		return nil, errInvalidInterval
	}

	return &Server{
		logger:  cfg.Logger,
		client:  NewClient(cfg.APIBaseURL),
		config:  cfg,
		metrics: cfg.Metrics,
	}, nil
}

// Run seeds the fleet, starts the workers and blocks until shutdown.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	machines, err := s.seed(ctx)
	if err != nil {
		return err
	}

	for i, machine := range machines {
		s.wg.Add(1)
		go s.runWorker(ctx, i, machine)
	}

	s.logger.Info("simulator started",
		"machines", len(machines),
		"interval", s.config.Interval,
	)

	select {
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
	case <-ctx.Done():
		s.logger.Info("context canceled")
	}

	s.wg.Wait()
	s.logger.Info("simulator stopped")
	return nil
}

// seed registers the demo machines.
func (s *Server) seed(ctx context.Context) ([]store.Machine, error) {
	machines := make([]store.Machine, 0, s.config.MachineCount)

	for i := 0; i < s.config.MachineCount; i++ {
		fake, err := generator.NewFakeMachine()
		if err != nil {
			return nil, err
		}

		machine, err := s.client.CreateMachine(ctx, fake)
		if err != nil {
			return nil, err
		}

		if s.metrics != nil {
			s.metrics.MachinesSeeded.Inc()
		}

		s.logger.Info("seeded machine",
			"machine_id", machine.ID,
			"name", machine.Name,
			"due", machine.NextMaintenanceDate.Format("2006-01-02"),
		)
		machines = append(machines, machine)
	}

	return machines, nil
}

// runWorker posts readings for one machine until the context is canceled.
func (s *Server) runWorker(ctx context.Context, id int, machine store.Machine) {
	defer s.wg.Done()

	logger := s.logger.With(
		slog.Int("worker_id", id),
		slog.String("machine_id", machine.ID),
	)

	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(id)))
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debug("worker stopped")
			return
		case <-ticker.C:
			s.postReading(ctx, logger, rng, machine)
		}
	}
}

func (s *Server) postReading(ctx context.Context, logger *slog.Logger, rng *rand.Rand, machine store.Machine) {
	var timer *prometheus.Timer

	if rng.Float64() < abnormalChance {
		// Push one dimension just past its ceiling.
		temperature := machine.Thresholds.Temperature + 5 + rng.Float64()*10
		if s.metrics != nil {
			timer = prometheus.NewTimer(s.metrics.RequestDuration.WithLabelValues("vitals"))
		}
		err := s.client.PostVital(ctx, machine.ID, &temperature, nil, nil)
		if timer != nil {
			timer.ObserveDuration()
		}
		s.track(logger, err, "posted abnormal reading")
		return
	}

	if s.metrics != nil {
		timer = prometheus.NewTimer(s.metrics.RequestDuration.WithLabelValues("simulate"))
	}
	_, err := s.client.SimulateVital(ctx, machine.ID)
	if timer != nil {
		timer.ObserveDuration()
	}
	s.track(logger, err, "posted simulated reading")
}

func (s *Server) track(logger *slog.Logger, err error, msg string) {
	if err != nil {
		logger.Error("failed to post reading", "error", err)
		if s.metrics != nil {
			s.metrics.ReadingsPosted.WithLabelValues("error").Inc()
		}
		return
	}

	logger.Debug(msg)
	if s.metrics != nil {
		s.metrics.ReadingsPosted.WithLabelValues("success").Inc()
	}
}
