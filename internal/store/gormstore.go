package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormStore implements Store on top of PostgreSQL. It is the durable
// alternative to the JSON snapshot backend and shares its semantics.
type GormStore struct {
	logger *slog.Logger
	db     *gorm.DB
}

// GormStoreConfig holds the database configuration.
type GormStoreConfig struct {
	Logger   *slog.Logger
	Host     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	Port     int
}

// NewGormStore connects to PostgreSQL, configures pooling and runs
// migrations for the machine and vital models.
func NewGormStore(cfg *GormStoreConfig) (*GormStore, error) {
	if cfg == nil {
		return nil, errors.New("store config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	cfg.Logger.Info("connecting to database",
		"host", cfg.Host,
		"port", cfg.Port,
		"dbname", cfg.DBName,
	)

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent), // Use slog instead of GORM's logger
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	db, err := gorm.Open(postgres.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	cfg.Logger.Info("database connection established")

	if err := db.AutoMigrate(&Machine{}, &Vital{}); err != nil {
		return nil, fmt.Errorf("auto-migration failed: %w", err)
	}

	cfg.Logger.Info("database migrations completed")

	return &GormStore{logger: cfg.Logger, db: db}, nil
}

// ListMachines returns all machines in insertion order.
func (s *GormStore) ListMachines(ctx context.Context) ([]Machine, error) {
	var machines []Machine
	if err := s.db.WithContext(ctx).Order("created_at ASC").Find(&machines).Error; err != nil {
		return nil, fmt.Errorf("failed to list machines: %w", err)
	}
	return machines, nil
}

// GetMachine returns a machine by id.
func (s *GormStore) GetMachine(ctx context.Context, id string) (Machine, error) {
	var machine Machine
	err := s.db.WithContext(ctx).First(&machine, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Machine{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Machine{}, fmt.Errorf("failed to fetch machine: %w", err)
	}
	return machine, nil
}

// CreateMachine validates and persists a new machine.
func (s *GormStore) CreateMachine(ctx context.Context, m NewMachine) (Machine, error) {
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
		CreatedAt:           time.Now().UTC(),
	}

	if err := s.db.WithContext(ctx).Create(&machine).Error; err != nil {
		return Machine{}, fmt.Errorf("failed to create machine: %w", err)
	}
	return machine, nil
}

// UpdateMachine merges the non-nil fields of upd into the machine.
func (s *GormStore) UpdateMachine(ctx context.Context, id string, upd MachineUpdate) (Machine, error) {
	machine, err := s.GetMachine(ctx, id)
	if err != nil {
		return Machine{}, err
	}

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

	if err := s.db.WithContext(ctx).Save(&machine).Error; err != nil {
		return Machine{}, fmt.Errorf("failed to update machine: %w", err)
	}
	return machine, nil
}

// DeleteMachine removes the machine and cascades to its vitals in one
// transaction.
func (s *GormStore) DeleteMachine(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&Machine{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("failed to delete machine: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if err := tx.Delete(&Vital{}, "machine_id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to delete vitals: %w", err)
		}
		return nil
	})
}

// ListVitals returns the most recent limit vitals in ascending timestamp
// order. The query fetches the newest rows and reverses them in memory.
func (s *GormStore) ListVitals(ctx context.Context, machineID string, limit int) ([]Vital, error) {
	if limit <= 0 {
		limit = DefaultVitalsLimit
	}

	var vitals []Vital
	err := s.db.WithContext(ctx).
		Where("machine_id = ?", machineID).
		Order("timestamp DESC").
		Limit(limit).
		Find(&vitals).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list vitals: %w", err)
	}

	for i, j := 0, len(vitals)-1; i < j; i, j = i+1, j-1 {
		vitals[i], vitals[j] = vitals[j], vitals[i]
	}

	if vitals == nil {
		vitals = []Vital{}
	}
	return vitals, nil
}

// AppendVital persists a new reading for an existing machine.
func (s *GormStore) AppendVital(ctx context.Context, v NewVital) (Vital, error) {
	if _, err := s.GetMachine(ctx, v.MachineID); err != nil {
		return Vital{}, err
	}

	timestamp := v.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	vital := Vital{
		ID:          uuid.NewString(),
		MachineID:   v.MachineID,
		Temperature: v.Temperature,
		Vibration:   v.Vibration,
		Pressure:    v.Pressure,
		Timestamp:   timestamp,
	}

	if err := s.db.WithContext(ctx).Create(&vital).Error; err != nil {
		return Vital{}, fmt.Errorf("failed to append vital: %w", err)
	}
	return vital, nil
}

// MarkAlertSent stamps the machine's last abnormal-alert time.
func (s *GormStore) MarkAlertSent(ctx context.Context, machineID string, at time.Time) error {
	return s.stamp(ctx, machineID, "last_abnormal_alert_sent", at)
}

// MarkReminderSent stamps the machine's last maintenance-reminder time.
func (s *GormStore) MarkReminderSent(ctx context.Context, machineID string, at time.Time) error {
	return s.stamp(ctx, machineID, "last_maintenance_reminder_sent", at)
}

func (s *GormStore) stamp(ctx context.Context, machineID, column string, at time.Time) error {
	res := s.db.WithContext(ctx).
		Model(&Machine{}).
		Where("id = ?", machineID).
		Update(column, at)
	if res.Error != nil {
		return fmt.Errorf("failed to stamp %s: %w", column, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, machineID)
	}
	return nil
}

// MachineCount returns the number of machines.
func (s *GormStore) MachineCount(ctx context.Context) (int, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&Machine{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count machines: %w", err)
	}
	return int(count), nil
}

// Close closes the underlying database connection.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	s.logger.Info("closing database connection")
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// Ensure GormStore implements Store.
var _ Store = (*GormStore)(nil)
