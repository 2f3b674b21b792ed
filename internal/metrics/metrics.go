// Package metrics summarizes how a room of furniture fared during a run.
package metrics

import (
	"github.com/san-kum/quakesim/internal/dynamo"
	"github.com/san-kum/quakesim/internal/physics"
)

// Metric observes every step of a run and reduces it to one number.
type Metric interface {
	Name() string
	Observe(t float64, floor dynamo.Vec3, bodies []physics.BodyState)
	Value() float64
	Reset()
}

// Defaults returns a fresh set of the standard run metrics.
func Defaults() []Metric {
	return []Metric{
		NewMaxDisplacement(),
		NewToppled(),
		NewPeakKineticEnergy(),
		NewMinHeight(),
		NewPeakFloorDisplacement(),
	}
}
