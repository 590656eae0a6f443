package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a machine id does not exist.
	ErrNotFound = errors.New("machine not found")

	// ErrValidation is returned when a create request is missing required
	// fields. Nothing is persisted in that case.
	ErrValidation = errors.New("validation failed")
)

// Store is the persistence abstraction injected into the API layer, the
// alert dispatcher and the reminder loop. Implementations must serialize
// concurrent access; callers never deal with storage-level locking.
type Store interface {
	// ListMachines returns all machines in insertion order.
	ListMachines(ctx context.Context) ([]Machine, error)

	// GetMachine returns a machine by id or ErrNotFound.
	GetMachine(ctx context.Context, id string) (Machine, error)

	// CreateMachine validates and persists a new machine, applying default
	// thresholds when none are given. Returns ErrValidation when name or
	// next maintenance date is missing.
	CreateMachine(ctx context.Context, m NewMachine) (Machine, error)

	// UpdateMachine merges the non-nil fields of upd into the machine and
	// persists the result. Returns ErrNotFound for an unknown id.
	UpdateMachine(ctx context.Context, id string, upd MachineUpdate) (Machine, error)

	// DeleteMachine removes the machine and every vital referencing it.
	DeleteMachine(ctx context.Context, id string) error

	// ListVitals returns the most recent limit vitals for the machine in
	// ascending timestamp order. A non-positive limit selects the default
	// of 50.
	ListVitals(ctx context.Context, machineID string, limit int) ([]Vital, error)

	// AppendVital persists a new reading. Returns ErrNotFound when the
	// referenced machine does not exist.
	AppendVital(ctx context.Context, v NewVital) (Vital, error)

	// MarkAlertSent stamps the machine's last abnormal-alert time.
	MarkAlertSent(ctx context.Context, machineID string, at time.Time) error

	// MarkReminderSent stamps the machine's last maintenance-reminder time.
	MarkReminderSent(ctx context.Context, machineID string, at time.Time) error

	// MachineCount returns the number of machines, for the health endpoint.
	MachineCount(ctx context.Context) (int, error)

	// Close releases any underlying resources.
	Close() error
}

// DefaultVitalsLimit caps vital listings when the caller does not specify
// an explicit limit.
const DefaultVitalsLimit = 50
