package store_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"procodus.dev/machine-monitor/internal/store"
)

var _ = Describe("Models", func() {
	Describe("Machine", func() {
		It("should map to the machines table", func() {
			Expect(store.Machine{}.TableName()).To(Equal("machines"))
		})
	})

	Describe("Vital", func() {
		It("should map to the vitals table", func() {
			Expect(store.Vital{}.TableName()).To(Equal("vitals"))
		})

		It("should represent absent dimensions as nil", func() {
			vital := store.Vital{}
			Expect(vital.Temperature).To(BeNil())
			Expect(vital.Vibration).To(BeNil())
			Expect(vital.Pressure).To(BeNil())
		})
	})

	Describe("DefaultThresholds", func() {
		It("should match the documented ceilings", func() {
			t := store.DefaultThresholds()
			Expect(t.Temperature).To(Equal(80.0))
			Expect(t.Vibration).To(Equal(10.0))
			Expect(t.Pressure).To(Equal(200.0))
		})
	})
})
