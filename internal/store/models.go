// Package store provides the machine and vital data model together with the
// persistence backends for the maintenance monitor.
package store

import (
	"time"
)

// Thresholds holds the per-dimension ceilings above which a vital reading is
// considered abnormal.
type Thresholds struct {
	Temperature float64 `json:"temperature"`
	Vibration   float64 `json:"vibration"`
	Pressure    float64 `json:"pressure"`
}

// DefaultThresholds returns the ceilings applied when a machine is created
// without explicit thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Temperature: 80,
		Vibration:   10,
		Pressure:    200,
	}
}

// Machine represents a monitored machine with its maintenance schedule and
// alert bookkeeping.
type Machine struct {
	ID                          string     `json:"id" gorm:"primaryKey"`
	Name                        string     `json:"name" gorm:"not null"`
	Code                        string     `json:"code,omitempty"`
	Location                    string     `json:"location,omitempty"`
	NextMaintenanceDate         time.Time  `json:"nextMaintenanceDate" gorm:"not null"`
	ResponsibleEmail            string     `json:"responsibleEmail,omitempty"`
	Thresholds                  Thresholds `json:"thresholds" gorm:"embedded;embeddedPrefix:threshold_"`
	LastMaintenanceReminderSent *time.Time `json:"lastMaintenanceReminderSent"`
	LastAbnormalAlertSent       *time.Time `json:"lastAbnormalAlertSent"`
	CreatedAt                   time.Time  `json:"createdAt"`
}

// TableName specifies the table name for the Machine model.
func (Machine) TableName() string {
	return "machines"
}

// Vital is a single timestamped sensor reading attached to a machine.
// Dimension values are pointers: a nil value means the dimension was absent
// or non-numeric in the ingested payload.
type Vital struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	MachineID   string    `json:"machineId" gorm:"index:idx_machine_timestamp;not null"`
	Temperature *float64  `json:"temperature"`
	Vibration   *float64  `json:"vibration"`
	Pressure    *float64  `json:"pressure"`
	Timestamp   time.Time `json:"timestamp" gorm:"index:idx_machine_timestamp;not null"`
}

// TableName specifies the table name for the Vital model.
func (Vital) TableName() string {
	return "vitals"
}

// NewMachine carries the fields accepted when creating a machine.
type NewMachine struct {
	Name                string
	Code                string
	Location            string
	NextMaintenanceDate time.Time
	ResponsibleEmail    string
	// Thresholds is optional; nil selects DefaultThresholds.
	Thresholds *Thresholds
}

// MachineUpdate carries a partial machine mutation. Nil fields are left
// untouched; the machine id itself is immutable.
type MachineUpdate struct {
	Name                *string
	Code                *string
	Location            *string
	NextMaintenanceDate *time.Time
	ResponsibleEmail    *string
	Thresholds          *Thresholds
}

// NewVital carries the fields accepted when appending a vital reading.
// A zero Timestamp defaults to the ingestion time.
type NewVital struct {
	MachineID   string
	Temperature *float64
	Vibration   *float64
	Pressure    *float64
	Timestamp   time.Time
}
