// Package generator produces synthetic machines and vital readings for the
// simulate endpoint and the simulator service.
package generator

import (
	"math"
	"math/rand"

	"procodus.dev/machine-monitor/internal/store"
)

// Dimension offsets and spreads for simulated readings. Each value is drawn
// uniformly from [center-spread, center+spread] with the center sitting below
// the threshold, so simulated readings usually stay normal.
const (
	temperatureOffset = 10
	temperatureSpread = 8
	vibrationOffset   = 3
	vibrationSpread   = 3
	pressureOffset    = 30
	pressureSpread    = 20
)

// VitalGenerator draws pseudo-random vital readings biased to stay under a
// machine's thresholds. It is not safe for concurrent use; callers own the
// locking or use one generator per goroutine.
type VitalGenerator struct {
	rng *rand.Rand
}

// NewVitalGenerator creates a generator from the given source. A fixed seed
// makes the output deterministic for tests.
func NewVitalGenerator(src rand.Source) *VitalGenerator {
	return &VitalGenerator{rng: rand.New(src)}
}

// Generate draws one reading for the given thresholds, each dimension
// rounded to one decimal place.
func (g *VitalGenerator) Generate(t store.Thresholds) store.NewVital {
	temperature := g.draw(t.Temperature-temperatureOffset, temperatureSpread)
	vibration := g.draw(t.Vibration-vibrationOffset, vibrationSpread)
	pressure := g.draw(t.Pressure-pressureOffset, pressureSpread)

	return store.NewVital{
		Temperature: &temperature,
		Vibration:   &vibration,
		Pressure:    &pressure,
	}
}

// draw samples uniformly around center with the given symmetric spread.
func (g *VitalGenerator) draw(center, spread float64) float64 {
	v := center + (g.rng.Float64()*2-1)*spread
	return math.Round(v*10) / 10
}
