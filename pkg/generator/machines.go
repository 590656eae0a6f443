package generator

import (
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"procodus.dev/machine-monitor/internal/store"
)

// machineSeed is the gofakeit template for a demo machine.
type machineSeed struct {
	Name             string `fake:"{company}"`
	Location         string `fake:"{city}, {state}"`
	ResponsibleEmail string `fake:"{email}"`
}

// NewFakeMachine builds a machine-creation request with fake identity fields
// and a maintenance date spread over the two weeks around now, so seeded
// fleets contain overdue, due-soon and healthy machines.
func NewFakeMachine() (store.NewMachine, error) {
	var seed machineSeed
	if err := gofakeit.Struct(&seed); err != nil {
		return store.NewMachine{}, fmt.Errorf("failed to generate machine: %w", err)
	}

	dueOffset := time.Duration(gofakeit.Number(-14, 14)) * 24 * time.Hour

	return store.NewMachine{
		Name:                seed.Name,
		Code:                fmt.Sprintf("MX-%03d", gofakeit.Number(1, 999)),
		Location:            seed.Location,
		ResponsibleEmail:    seed.ResponsibleEmail,
		NextMaintenanceDate: time.Now().UTC().Add(dueOffset).Truncate(24 * time.Hour),
	}, nil
}
