package reminder_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"procodus.dev/machine-monitor/internal/reminder"
	"procodus.dev/machine-monitor/internal/store"
)

// spyNotifier records every send for assertions.
type spyNotifier struct {
	mu       sync.Mutex
	subjects []string
}

func (n *spyNotifier) Send(_ context.Context, subject, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subjects = append(n.subjects, subject)
	return nil
}

func (n *spyNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subjects)
}

var _ = Describe("ShouldRemind", func() {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	machineDueIn := func(days float64) store.Machine {
		return store.Machine{
			NextMaintenanceDate: now.Add(time.Duration(days * 24 * float64(time.Hour))),
		}
	}

	Context("with no reminder ever sent", func() {
		DescribeTable("window decisions",
			func(daysUntilDue float64, expected bool) {
				m := machineDueIn(daysUntilDue)
				Expect(reminder.ShouldRemind(m, now, 7)).To(Equal(expected))
			},
			Entry("due in 3 days", 3.0, true),
			Entry("due exactly at the window edge", 7.0, true),
			Entry("due beyond the window", 8.0, false),
			Entry("overdue by 2 days", -2.0, true),
			Entry("overdue by a month", -30.0, true),
		)
	})

	Context("with a recent reminder", func() {
		It("should hold off for a full day", func() {
			m := machineDueIn(3)
			sent := now.Add(-2 * time.Hour)
			m.LastMaintenanceReminderSent = &sent
			Expect(reminder.ShouldRemind(m, now, 7)).To(BeFalse())
		})
	})

	Context("with a reminder older than a day", func() {
		It("should remind again", func() {
			m := machineDueIn(3)
			sent := now.Add(-25 * time.Hour)
			m.LastMaintenanceReminderSent = &sent
			Expect(reminder.ShouldRemind(m, now, 7)).To(BeTrue())
		})
	})
})

var _ = Describe("Loop", func() {
	var (
		ctx      context.Context
		logger   *slog.Logger
		s        *store.JSONStore
		notifier *spyNotifier
		loop     *reminder.Loop
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

		notifier = &spyNotifier{}
		loop, err = reminder.NewLoop(&reminder.LoopConfig{
			Logger:        logger,
			Store:         s,
			Notifier:      notifier,
			Interval:      time.Minute,
			LookaheadDays: 7,
		})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewLoop", func() {
		It("should return error when config is nil", func() {
			l, err := reminder.NewLoop(nil)
			Expect(err).To(HaveOccurred())
			Expect(l).To(BeNil())
		})

		It("should return error when notifier is nil", func() {
			_, err := reminder.NewLoop(&reminder.LoopConfig{
				Logger: logger,
				Store:  s,
			})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Sweep", func() {
		It("should remind for due and overdue machines and stamp them", func() {
			due, err := s.CreateMachine(ctx, store.NewMachine{
				Name:                "due soon",
				NextMaintenanceDate: time.Now().UTC().Add(48 * time.Hour),
			})
			Expect(err).NotTo(HaveOccurred())

			overdue, err := s.CreateMachine(ctx, store.NewMachine{
				Name:                "overdue",
				NextMaintenanceDate: time.Now().UTC().Add(-48 * time.Hour),
			})
			Expect(err).NotTo(HaveOccurred())

			healthy, err := s.CreateMachine(ctx, store.NewMachine{
				Name:                "healthy",
				NextMaintenanceDate: time.Now().UTC().Add(30 * 24 * time.Hour),
			})
			Expect(err).NotTo(HaveOccurred())

			loop.Sweep(ctx)

			Expect(notifier.count()).To(Equal(2))

			for _, id := range []string{due.ID, overdue.ID} {
				m, err := s.GetMachine(ctx, id)
				Expect(err).NotTo(HaveOccurred())
				Expect(m.LastMaintenanceReminderSent).NotTo(BeNil())
			}

			m, err := s.GetMachine(ctx, healthy.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(m.LastMaintenanceReminderSent).To(BeNil())
		})

		It("should not remind twice within a day", func() {
			_, err := s.CreateMachine(ctx, store.NewMachine{
				Name:                "due soon",
				NextMaintenanceDate: time.Now().UTC().Add(48 * time.Hour),
			})
			Expect(err).NotTo(HaveOccurred())

			loop.Sweep(ctx)
			loop.Sweep(ctx)

			Expect(notifier.count()).To(Equal(1))
		})
	})

	Describe("Run", func() {
		It("should stop on context cancellation", func() {
			runCtx, cancel := context.WithCancel(ctx)

			done := make(chan struct{})
			go func() {
				loop.Run(runCtx)
				close(done)
			}()

			cancel()
			Eventually(done).Should(BeClosed())
		})
	})
})
