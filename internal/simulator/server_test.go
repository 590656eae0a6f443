package simulator_test

import (
	"context"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"procodus.dev/machine-monitor/internal/notify"
	"procodus.dev/machine-monitor/internal/server"
	"procodus.dev/machine-monitor/internal/simulator"
	"procodus.dev/machine-monitor/internal/store"
)

var _ = Describe("Simulator Server", func() {
	var logger *slog.Logger

	BeforeEach(func() {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
	})

	Describe("NewServer", func() {
		Context("with valid configuration", func() {
			It("should create a server", func() {
				srv, err := simulator.NewServer(&simulator.ServerConfig{
					Logger:       logger,
					APIBaseURL:   "http://localhost:8080",
					MachineCount: 5,
					Interval:     5 * time.Second,
				})
				Expect(err).NotTo(HaveOccurred())
				Expect(srv).NotTo(BeNil())
			})

			It("should create a server with a single machine", func() {
				srv, err := simulator.NewServer(&simulator.ServerConfig{
					Logger:       logger,
					APIBaseURL:   "http://localhost:8080",
					MachineCount: 1,
					Interval:     time.Second,
				})
				Expect(err).NotTo(HaveOccurred())
				Expect(srv).NotTo(BeNil())
			})
		})

		Context("with invalid configuration", func() {
			It("should return error when config is nil", func() {
				srv, err := simulator.NewServer(nil)
				Expect(err).To(HaveOccurred())
				Expect(srv).To(BeNil())
			})

			It("should return error when logger is nil", func() {
				_, err := simulator.NewServer(&simulator.ServerConfig{
					APIBaseURL:   "http://localhost:8080",
					MachineCount: 5,
					Interval:     time.Second,
				})
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("logger"))
			})

			It("should return error when the base URL is empty", func() {
				_, err := simulator.NewServer(&simulator.ServerConfig{
					Logger:       logger,
					MachineCount: 5,
					Interval:     time.Second,
				})
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("base URL"))
			})

			It("should return error when machine count is zero", func() {
				_, err := simulator.NewServer(&simulator.ServerConfig{
					Logger:     logger,
					APIBaseURL: "http://localhost:8080",
					Interval:   time.Second,
				})
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("machine count"))
			})

			It("should return error when interval is zero", func() {
				_, err := simulator.NewServer(&simulator.ServerConfig{
					Logger:       logger,
					APIBaseURL:   "http://localhost:8080",
					MachineCount: 5,
				})
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("interval"))
			})
		})
	})

	Describe("Run", func() {
		var (
			s       *store.JSONStore
			api     *httptest.Server
			baseURL string
		)

		BeforeEach(func() {
			var err error
			s, err = store.NewJSONStore(&store.JSONStoreConfig{
				Logger: logger,
				Path:   filepath.Join(GinkgoT().TempDir(), "machines.json"),
			})
			Expect(err).NotTo(HaveOccurred())

			apiServer, err := server.NewServer(&server.ServerConfig{
				Logger:   logger,
				Store:    s,
				Notifier: notify.NewLogNotifier(logger),
				HTTPPort: 8080,
			})
			Expect(err).NotTo(HaveOccurred())

			api = httptest.NewServer(apiServer.Handler())
			baseURL = api.URL
		})

		AfterEach(func() {
			api.Close()
		})

		It("should seed the configured number of machines", func() {
			srv, err := simulator.NewServer(&simulator.ServerConfig{
				Logger:       logger,
				APIBaseURL:   baseURL,
				MachineCount: 3,
				Interval:     time.Hour, // No readings during this test.
			})
			Expect(err).NotTo(HaveOccurred())

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() {
				done <- srv.Run(ctx)
			}()

			Eventually(func() (int, error) {
				return s.MachineCount(context.Background())
			}, 5*time.Second).Should(Equal(3))

			cancel()
			Eventually(done, 2*time.Second).Should(Receive(BeNil()))
		})

		It("should keep posting readings for each machine", func() {
			srv, err := simulator.NewServer(&simulator.ServerConfig{
				Logger:       logger,
				APIBaseURL:   baseURL,
				MachineCount: 2,
				Interval:     20 * time.Millisecond,
			})
			Expect(err).NotTo(HaveOccurred())

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() {
				done <- srv.Run(ctx)
			}()

			Eventually(func() (int, error) {
				machines, err := s.ListMachines(context.Background())
				if err != nil {
					return 0, err
				}
				total := 0
				for _, m := range machines {
					vitals, err := s.ListVitals(context.Background(), m.ID, 100)
					if err != nil {
						return 0, err
					}
					total += len(vitals)
				}
				return total, nil
			}, 5*time.Second).Should(BeNumerically(">=", 4))

			cancel()
			Eventually(done, 2*time.Second).Should(Receive(BeNil()))
		})

		It("should fail when the API is unreachable", func() {
			srv, err := simulator.NewServer(&simulator.ServerConfig{
				Logger:       logger,
				APIBaseURL:   "http://127.0.0.1:1",
				MachineCount: 1,
				Interval:     time.Second,
			})
			Expect(err).NotTo(HaveOccurred())

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			Expect(srv.Run(ctx)).To(HaveOccurred())
		})
	})
})
