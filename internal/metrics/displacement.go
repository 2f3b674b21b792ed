package metrics

import (
	"math"

	"github.com/san-kum/quakesim/internal/dynamo"
	"github.com/san-kum/quakesim/internal/physics"
)

// MaxDisplacement is the largest horizontal distance any body moved from
// where it was first observed.
type MaxDisplacement struct {
	name   string
	origin map[string]dynamo.Vec3
	max    float64
}

func NewMaxDisplacement() *MaxDisplacement {
	return &MaxDisplacement{
		name:   "max_displacement",
		origin: make(map[string]dynamo.Vec3),
	}
}

func (m *MaxDisplacement) Name() string { return m.name }

func (m *MaxDisplacement) Observe(_ float64, _ dynamo.Vec3, bodies []physics.BodyState) {
	for _, b := range bodies {
		o, ok := m.origin[b.ObjectID]
		if !ok {
			m.origin[b.ObjectID] = b.Position
			continue
		}
		m.max = math.Max(m.max, b.Position.Sub(o).Horizontal())
	}
}

func (m *MaxDisplacement) Value() float64 { return m.max }

func (m *MaxDisplacement) Reset() {
	clear(m.origin)
	m.max = 0
}

// PeakFloorDisplacement is the largest horizontal floor offset seen.
type PeakFloorDisplacement struct {
	name string
	peak float64
}

func NewPeakFloorDisplacement() *PeakFloorDisplacement {
	return &PeakFloorDisplacement{name: "peak_floor_displacement"}
}

func (p *PeakFloorDisplacement) Name() string { return p.name }

func (p *PeakFloorDisplacement) Observe(_ float64, floor dynamo.Vec3, _ []physics.BodyState) {
	p.peak = math.Max(p.peak, floor.Horizontal())
}

func (p *PeakFloorDisplacement) Value() float64 { return p.peak }

func (p *PeakFloorDisplacement) Reset() { p.peak = 0 }
