package alerts_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"procodus.dev/machine-monitor/internal/alerts"
	"procodus.dev/machine-monitor/internal/store"
)

// spyNotifier records every send for assertions.
type spyNotifier struct {
	mu       sync.Mutex
	subjects []string
	bodies   []string
}

func (n *spyNotifier) Send(_ context.Context, subject, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subjects = append(n.subjects, subject)
	n.bodies = append(n.bodies, body)
	return nil
}

func (n *spyNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subjects)
}

var _ = Describe("Dispatcher", func() {
	var (
		ctx        context.Context
		logger     *slog.Logger
		s          *store.JSONStore
		notifier   *spyNotifier
		dispatcher *alerts.Dispatcher
		machine    store.Machine
	)

	BeforeEach(func() {
		ctx = context.Background()
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))

		var err error
		s, err = store.NewJSONStore(&store.JSONStoreConfig{
			Logger: logger,
			Path:   filepath.Join(GinkgoT().TempDir(), "machines.json"),
		})
		Expect(err).NotTo(HaveOccurred())

		machine, err = s.CreateMachine(ctx, store.NewMachine{
			Name:                "press",
			NextMaintenanceDate: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
		})
		Expect(err).NotTo(HaveOccurred())

		notifier = &spyNotifier{}
		dispatcher, err = alerts.NewDispatcher(&alerts.DispatcherConfig{
			Logger:   logger,
			Store:    s,
			Notifier: notifier,
			Gap:      30 * time.Minute,
		})
		Expect(err).NotTo(HaveOccurred())
	})

	abnormalVital := func() store.Vital {
		return store.Vital{
			MachineID:   machine.ID,
			Temperature: ptr(95),
			Timestamp:   time.Now().UTC(),
		}
	}

	Describe("NewDispatcher", func() {
		It("should return error when config is nil", func() {
			d, err := alerts.NewDispatcher(nil)
			Expect(err).To(HaveOccurred())
			Expect(d).To(BeNil())
		})

		It("should return error when store is nil", func() {
			_, err := alerts.NewDispatcher(&alerts.DispatcherConfig{
				Logger:   logger,
				Notifier: notifier,
			})
			Expect(err).To(HaveOccurred())
		})
	})

	Context("with a normal reading", func() {
		It("should not notify and not stamp the machine", func() {
			eval := dispatcher.HandleVital(ctx, machine, store.Vital{
				MachineID:   machine.ID,
				Temperature: ptr(20),
			})
			Expect(eval.Abnormal).To(BeFalse())
			Expect(notifier.count()).To(BeZero())

			fresh, err := s.GetMachine(ctx, machine.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(fresh.LastAbnormalAlertSent).To(BeNil())
		})
	})

	Context("with an abnormal reading", func() {
		It("should notify and stamp the machine", func() {
			eval := dispatcher.HandleVital(ctx, machine, abnormalVital())
			Expect(eval.Abnormal).To(BeTrue())
			Expect(notifier.count()).To(Equal(1))
			Expect(notifier.subjects[0]).To(ContainSubstring("press"))

			fresh, err := s.GetMachine(ctx, machine.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(fresh.LastAbnormalAlertSent).NotTo(BeNil())
		})
	})

	Context("inside the re-send gap", func() {
		It("should suppress the second alert", func() {
			dispatcher.HandleVital(ctx, machine, abnormalVital())

			// Reload so the fresh alert stamp is visible.
			fresh, err := s.GetMachine(ctx, machine.ID)
			Expect(err).NotTo(HaveOccurred())

			eval := dispatcher.HandleVital(ctx, fresh, abnormalVital())
			Expect(eval.Abnormal).To(BeTrue())
			Expect(notifier.count()).To(Equal(1))
		})
	})

	Context("after the gap has elapsed", func() {
		It("should send a second alert", func() {
			stale := time.Now().UTC().Add(-31 * time.Minute)
			Expect(s.MarkAlertSent(ctx, machine.ID, stale)).To(Succeed())

			fresh, err := s.GetMachine(ctx, machine.ID)
			Expect(err).NotTo(HaveOccurred())

			dispatcher.HandleVital(ctx, fresh, abnormalVital())
			Expect(notifier.count()).To(Equal(1))
		})
	})
})
