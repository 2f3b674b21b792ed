package metrics

import (
	"math"

	"github.com/san-kum/quakesim/internal/dynamo"
	"github.com/san-kum/quakesim/internal/physics"
)

// Toppled counts bodies that tilted past physics.ToppleAngle at any point.
type Toppled struct {
	name    string
	toppled map[string]bool
}

func NewToppled() *Toppled {
	return &Toppled{name: "toppled", toppled: make(map[string]bool)}
}

func (s *Toppled) Name() string { return s.name }

func (s *Toppled) Observe(_ float64, _ dynamo.Vec3, bodies []physics.BodyState) {
	for _, b := range bodies {
		if b.Toppled() {
			s.toppled[b.ObjectID] = true
		}
	}
}

func (s *Toppled) Value() float64 { return float64(len(s.toppled)) }

func (s *Toppled) Reset() { clear(s.toppled) }

// MinHeight is the lowest body centre seen among bodies still on the
// floor. A negative value means something sank through it.
type MinHeight struct {
	name string
	min  float64
}

func NewMinHeight() *MinHeight {
	return &MinHeight{name: "min_height", min: math.Inf(1)}
}

func (h *MinHeight) Name() string { return h.name }

func (h *MinHeight) Observe(_ float64, _ dynamo.Vec3, bodies []physics.BodyState) {
	for _, b := range bodies {
		if b.Fallen {
			continue
		}
		h.min = math.Min(h.min, b.Position.Y)
	}
}

// Value is 0 when nothing was observed.
func (h *MinHeight) Value() float64 {
	if math.IsInf(h.min, 1) {
		return 0
	}
	return h.min
}

func (h *MinHeight) Reset() { h.min = math.Inf(1) }
