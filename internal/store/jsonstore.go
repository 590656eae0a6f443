package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JSONStore persists the whole state as a single JSON document that is
// rewritten synchronously after every mutation. A mutex serializes access;
// a single in-process instance per file is assumed.
type JSONStore struct {
	mu       sync.Mutex
	logger   *slog.Logger
	path     string
	machines []Machine
	vitals   []Vital
	now      func() time.Time
}

// JSONStoreConfig holds the configuration for a JSONStore.
type JSONStoreConfig struct {
	Logger *slog.Logger

	// Path is the location of the snapshot file. Parent directories are
	// created on first save.
	Path string
}

// snapshot is the on-disk document layout.
type snapshot struct {
	Machines []Machine `json:"machines"`
	Vitals   []Vital   `json:"vitals"`
}

// NewJSONStore creates a store backed by the snapshot file at cfg.Path and
// loads the existing state. An unreadable or unparsable file degrades to an
// empty state with a logged warning rather than failing startup.
func NewJSONStore(cfg *JSONStoreConfig) (*JSONStore, error) {
	if cfg == nil {
		return nil, errors.New("store config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.Path == "" {
		return nil, errors.New("snapshot path cannot be empty")
	}

	s := &JSONStore{
		logger:   cfg.Logger,
		path:     cfg.Path,
		machines: []Machine{},
		vitals:   []Vital{},
		now:      func() time.Time { return time.Now().UTC() },
	}

	s.load()
	return s, nil
}

// load reads the snapshot file into memory. Missing or corrupt files leave
// the store empty.
func (s *JSONStore) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("failed to read snapshot, starting empty",
				"path", s.path,
				"error", err,
			)
		}
		return
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		s.logger.Warn("failed to parse snapshot, starting empty",
			"path", s.path,
			"error", err,
		)
		return
	}

	if snap.Machines != nil {
		s.machines = snap.Machines
	}
	if snap.Vitals != nil {
		s.vitals = snap.Vitals
	}

	s.logger.Info("loaded snapshot",
		"path", s.path,
		"machines", len(s.machines),
		"vitals", len(s.vitals),
	)
}

// save rewrites the whole snapshot. Callers must hold the mutex.
func (s *JSONStore) save() error {
	snap := snapshot{Machines: s.machines, Vitals: s.vitals}

	data, err := json.MarshalIndent(&snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create snapshot directory: %w", err)
		}
	}

	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	return nil
}

// indexOf returns the position of the machine with the given id, or -1.
// Callers must hold the mutex.
func (s *JSONStore) indexOf(id string) int {
	for i := range s.machines {
		if s.machines[i].ID == id {
			return i
		}
	}
	return -1
}

// ListMachines returns all machines in insertion order.
func (s *JSONStore) ListMachines(_ context.Context) ([]Machine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Machine, len(s.machines))
	copy(out, s.machines)
	return out, nil
}

// GetMachine returns a machine by id.
func (s *JSONStore) GetMachine(_ context.Context, id string) (Machine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return Machine{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.machines[i], nil
}

// CreateMachine validates and persists a new machine.
func (s *JSONStore) CreateMachine(_ context.Context, m NewMachine) (Machine, error) {
	if m.Name == "" {
		return Machine{}, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if m.NextMaintenanceDate.IsZero() {
		return Machine{}, fmt.Errorf("%w: nextMaintenanceDate is required", ErrValidation)
	}

	thresholds := DefaultThresholds()
	if m.Thresholds != nil {
		thresholds = *m.Thresholds
	}

	machine := Machine{
		ID:                  uuid.NewString(),
		Name:                m.Name,
		Code:                m.Code,
		Location:            m.Location,
		NextMaintenanceDate: m.NextMaintenanceDate,
		ResponsibleEmail:    m.ResponsibleEmail,
		Thresholds:          thresholds,
		CreatedAt:           s.now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.machines = append(s.machines, machine)
	if err := s.save(); err != nil {
		s.machines = s.machines[:len(s.machines)-1]
		return Machine{}, err
	}

	return machine, nil
}

// UpdateMachine merges the non-nil fields of upd into the machine.
func (s *JSONStore) UpdateMachine(_ context.Context, id string, upd MachineUpdate) (Machine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return Machine{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	machine := s.machines[i]
	if upd.Name != nil {
		machine.Name = *upd.Name
	}
	if upd.Code != nil {
		machine.Code = *upd.Code
	}
	if upd.Location != nil {
		machine.Location = *upd.Location
	}
	if upd.NextMaintenanceDate != nil {
		machine.NextMaintenanceDate = *upd.NextMaintenanceDate
	}
	if upd.ResponsibleEmail != nil {
		machine.ResponsibleEmail = *upd.ResponsibleEmail
	}
	if upd.Thresholds != nil {
		machine.Thresholds = *upd.Thresholds
	}

	s.machines[i] = machine
	if err := s.save(); err != nil {
		return Machine{}, err
	}

	return machine, nil
}

// DeleteMachine removes the machine and cascades to its vitals.
func (s *JSONStore) DeleteMachine(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	s.machines = append(s.machines[:i], s.machines[i+1:]...)

	kept := s.vitals[:0]
	for _, v := range s.vitals {
		if v.MachineID != id {
			kept = append(kept, v)
		}
	}
	s.vitals = kept

	return s.save()
}

// ListVitals returns the most recent limit vitals for the machine in
// ascending timestamp order.
func (s *JSONStore) ListVitals(_ context.Context, machineID string, limit int) ([]Vital, error) {
	if limit <= 0 {
		limit = DefaultVitalsLimit
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Vital
	for _, v := range s.vitals {
		if v.MachineID == machineID {
			out = append(out, v)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})

	if len(out) > limit {
		out = out[len(out)-limit:]
	}

	if out == nil {
		out = []Vital{}
	}
	return out, nil
}

// AppendVital persists a new reading for an existing machine.
func (s *JSONStore) AppendVital(_ context.Context, v NewVital) (Vital, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(v.MachineID) < 0 {
		return Vital{}, fmt.Errorf("%w: %s", ErrNotFound, v.MachineID)
	}

	timestamp := v.Timestamp
	if timestamp.IsZero() {
		timestamp = s.now()
	}

	vital := Vital{
		ID:          uuid.NewString(),
		MachineID:   v.MachineID,
		Temperature: v.Temperature,
		Vibration:   v.Vibration,
		Pressure:    v.Pressure,
		Timestamp:   timestamp,
	}

	s.vitals = append(s.vitals, vital)
	if err := s.save(); err != nil {
		s.vitals = s.vitals[:len(s.vitals)-1]
		return Vital{}, err
	}

	return vital, nil
}

// MarkAlertSent stamps the machine's last abnormal-alert time.
func (s *JSONStore) MarkAlertSent(_ context.Context, machineID string, at time.Time) error {
	return s.stamp(machineID, func(m *Machine) {
		m.LastAbnormalAlertSent = &at
	})
}

// MarkReminderSent stamps the machine's last maintenance-reminder time.
func (s *JSONStore) MarkReminderSent(_ context.Context, machineID string, at time.Time) error {
	return s.stamp(machineID, func(m *Machine) {
		m.LastMaintenanceReminderSent = &at
	})
}

func (s *JSONStore) stamp(machineID string, apply func(*Machine)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(machineID)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, machineID)
	}

	apply(&s.machines[i])
	return s.save()
}

// MachineCount returns the number of machines.
func (s *JSONStore) MachineCount(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.machines), nil
}

// Close is a no-op for the JSON backend.
func (s *JSONStore) Close() error {
	return nil
}

// Ensure JSONStore implements Store.
var _ Store = (*JSONStore)(nil)
