package store

import (
	"context"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	mstore "procodus.dev/machine-monitor/internal/store"
)

func ptr[T any](v T) *T { return &v }

var _ = Describe("GormStore E2E", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Context("Machine lifecycle", func() {
		It("should create, fetch, update and delete a machine", func() {
			created, err := dbStore.CreateMachine(ctx, mstore.NewMachine{
				Name:                "Hydraulic Press",
				Code:                "MX-101",
				Location:            "Hall 1",
				NextMaintenanceDate: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
				ResponsibleEmail:    "press@example.com",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(created.ID).NotTo(BeEmpty())
			Expect(created.Thresholds).To(Equal(mstore.DefaultThresholds()))

			fetched, err := dbStore.GetMachine(ctx, created.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(fetched.Name).To(Equal("Hydraulic Press"))
			Expect(fetched.Code).To(Equal("MX-101"))

			updated, err := dbStore.UpdateMachine(ctx, created.ID, mstore.MachineUpdate{
				Location:   ptr("Hall 2"),
				Thresholds: &mstore.Thresholds{Temperature: 95, Vibration: 12, Pressure: 250},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.Location).To(Equal("Hall 2"))
			Expect(updated.Thresholds.Temperature).To(Equal(95.0))
			Expect(updated.Name).To(Equal("Hydraulic Press"))

			Expect(dbStore.DeleteMachine(ctx, created.ID)).To(Succeed())

			_, err = dbStore.GetMachine(ctx, created.ID)
			Expect(err).To(MatchError(mstore.ErrNotFound))
		})

		It("should reject creates without required fields", func() {
			_, err := dbStore.CreateMachine(ctx, mstore.NewMachine{
				NextMaintenanceDate: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
			})
			Expect(err).To(MatchError(mstore.ErrValidation))

			_, err = dbStore.CreateMachine(ctx, mstore.NewMachine{Name: "Lathe"})
			Expect(err).To(MatchError(mstore.ErrValidation))
		})

		It("should return not found for unknown machine operations", func() {
			_, err := dbStore.GetMachine(ctx, "no-such-machine")
			Expect(err).To(MatchError(mstore.ErrNotFound))

			err = dbStore.DeleteMachine(ctx, "no-such-machine")
			Expect(err).To(MatchError(mstore.ErrNotFound))

			_, err = dbStore.UpdateMachine(ctx, "no-such-machine", mstore.MachineUpdate{
				Name: ptr("renamed"),
			})
			Expect(err).To(MatchError(mstore.ErrNotFound))
		})
	})

	Context("Vitals", func() {
		var machine mstore.Machine

		BeforeEach(func() {
			var err error
			machine, err = dbStore.CreateMachine(ctx, mstore.NewMachine{
				Name:                "Conveyor",
				NextMaintenanceDate: time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC),
			})
			Expect(err).NotTo(HaveOccurred())
		})

		AfterEach(func() {
			Expect(dbStore.DeleteMachine(ctx, machine.ID)).To(Succeed())
		})

		It("should append vitals and list the most recent in ascending order", func() {
			base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
			for _, minute := range []int{3, 1, 4, 2} {
				_, err := dbStore.AppendVital(ctx, mstore.NewVital{
					MachineID:   machine.ID,
					Temperature: ptr(60.0 + float64(minute)),
					Timestamp:   base.Add(time.Duration(minute) * time.Minute),
				})
				Expect(err).NotTo(HaveOccurred())
			}

			vitals, err := dbStore.ListVitals(ctx, machine.ID, 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(vitals).To(HaveLen(3))

			// Oldest reading falls out of the window, rest ascend.
			Expect(vitals[0].Timestamp).To(BeTemporally("==", base.Add(2*time.Minute)))
			Expect(vitals[1].Timestamp).To(BeTemporally("==", base.Add(3*time.Minute)))
			Expect(vitals[2].Timestamp).To(BeTemporally("==", base.Add(4*time.Minute)))
		})

		It("should keep null dimensions null across the round trip", func() {
			stored, err := dbStore.AppendVital(ctx, mstore.NewVital{
				MachineID: machine.ID,
				Vibration: ptr(4.2),
			})
			Expect(err).NotTo(HaveOccurred())

			vitals, err := dbStore.ListVitals(ctx, machine.ID, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(vitals).To(HaveLen(1))
			Expect(vitals[0].ID).To(Equal(stored.ID))
			Expect(vitals[0].Temperature).To(BeNil())
			Expect(vitals[0].Pressure).To(BeNil())
			Expect(*vitals[0].Vibration).To(Equal(4.2))
		})

		It("should reject vitals for an unknown machine", func() {
			_, err := dbStore.AppendVital(ctx, mstore.NewVital{
				MachineID:   "no-such-machine",
				Temperature: ptr(20.0),
			})
			Expect(err).To(MatchError(mstore.ErrNotFound))
		})

		It("should delete vitals together with the machine", func() {
			victim, err := dbStore.CreateMachine(ctx, mstore.NewMachine{
				Name:                "Doomed",
				NextMaintenanceDate: time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC),
			})
			Expect(err).NotTo(HaveOccurred())

			for i := 0; i < 3; i++ {
				_, err := dbStore.AppendVital(ctx, mstore.NewVital{
					MachineID:   victim.ID,
					Temperature: ptr(float64(20 + i)),
				})
				Expect(err).NotTo(HaveOccurred())
			}

			Expect(dbStore.DeleteMachine(ctx, victim.ID)).To(Succeed())

			// The surviving machine's vitals are untouched.
			_, err = dbStore.AppendVital(ctx, mstore.NewVital{
				MachineID: machine.ID,
				Pressure:  ptr(150.0),
			})
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Context("Notification stamps", func() {
		It("should persist alert and reminder timestamps", func() {
			machine, err := dbStore.CreateMachine(ctx, mstore.NewMachine{
				Name:                "Stamped",
				NextMaintenanceDate: time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(machine.LastAbnormalAlertSent).To(BeNil())
			Expect(machine.LastMaintenanceReminderSent).To(BeNil())

			at := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
			Expect(dbStore.MarkAlertSent(ctx, machine.ID, at)).To(Succeed())
			Expect(dbStore.MarkReminderSent(ctx, machine.ID, at.Add(time.Hour))).To(Succeed())

			fetched, err := dbStore.GetMachine(ctx, machine.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(fetched.LastAbnormalAlertSent).NotTo(BeNil())
			Expect(*fetched.LastAbnormalAlertSent).To(BeTemporally("==", at))
			Expect(fetched.LastMaintenanceReminderSent).NotTo(BeNil())
			Expect(*fetched.LastMaintenanceReminderSent).To(BeTemporally("==", at.Add(time.Hour)))

			Expect(dbStore.MarkAlertSent(ctx, "no-such-machine", at)).To(MatchError(mstore.ErrNotFound))

			Expect(dbStore.DeleteMachine(ctx, machine.ID)).To(Succeed())
		})
	})

	Context("Counting", func() {
		It("should track the machine count", func() {
			before, err := dbStore.MachineCount(ctx)
			Expect(err).NotTo(HaveOccurred())

			var ids []string
			for i := 0; i < 3; i++ {
				m, err := dbStore.CreateMachine(ctx, mstore.NewMachine{
					Name:                fmt.Sprintf("Counted %d", i),
					NextMaintenanceDate: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
				})
				Expect(err).NotTo(HaveOccurred())
				ids = append(ids, m.ID)
			}

			after, err := dbStore.MachineCount(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(after).To(Equal(before + 3))

			for _, id := range ids {
				Expect(dbStore.DeleteMachine(ctx, id)).To(Succeed())
			}
		})
	})
})
