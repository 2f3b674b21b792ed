package metrics

import (
	"math"

	"github.com/san-kum/quakesim/internal/dynamo"
	"github.com/san-kum/quakesim/internal/physics"
)

// PeakKineticEnergy is the highest total kinetic energy of all bodies at a
// single step.
type PeakKineticEnergy struct {
	name string
	peak float64
}

func NewPeakKineticEnergy() *PeakKineticEnergy {
	return &PeakKineticEnergy{name: "peak_kinetic_energy"}
}

func (e *PeakKineticEnergy) Name() string { return e.name }

func (e *PeakKineticEnergy) Observe(_ float64, _ dynamo.Vec3, bodies []physics.BodyState) {
	total := 0.0
	for _, b := range bodies {
		total += b.KineticEnergy()
	}
	e.peak = math.Max(e.peak, total)
}

func (e *PeakKineticEnergy) Value() float64 { return e.peak }

func (e *PeakKineticEnergy) Reset() { e.peak = 0 }
