package physics

import (
	"fmt"
	"math"
	"sync"

	"github.com/google/uuid"

	"github.com/san-kum/quakesim/internal/dynamo"
	"github.com/san-kum/quakesim/internal/furniture"
	"github.com/san-kum/quakesim/internal/scene"
	"github.com/san-kum/quakesim/internal/seismic"
)

const (
	maxLinearSpeed  = 50.0
	maxAngularSpeed = 30.0

	// minimum upward normal component for a contact to count as support
	supportNormal = 0.5
)

type Config struct {
	Gravity         float64 `yaml:"gravity"`
	SpawnOffset     float64 `yaml:"spawn_offset"`
	FloorFriction   float64 `yaml:"floor_friction"`
	BodyFriction    float64 `yaml:"body_friction"`
	LinearDamping   float64 `yaml:"linear_damping"`
	AngularDamping  float64 `yaml:"angular_damping"`
	Iterations      int     `yaml:"iterations"`
	FloorHalfExtent float64 `yaml:"floor_half_extent"`
	Baumgarte       float64 `yaml:"baumgarte"`
	Slop            float64 `yaml:"slop"`
	ContactMargin   float64 `yaml:"contact_margin"`
	WarmStart       float64 `yaml:"warm_start"`

	// a supported body slower than these for RestDelay seconds is pinned
	// to the floor velocity
	RestLinear  float64 `yaml:"rest_linear"`
	RestAngular float64 `yaml:"rest_angular"`
	RestDelay   float64 `yaml:"rest_delay"`

	// a body whose centre drops this far below the floor has left the slab
	FallDepth float64 `yaml:"fall_depth"`
}

func DefaultConfig() Config {
	return Config{
		Gravity:         9.81,
		SpawnOffset:     0.5,
		FloorFriction:   4.0,
		BodyFriction:    0.5,
		LinearDamping:   0.5,
		AngularDamping:  0.5,
		Iterations:      10,
		FloorHalfExtent: 25,
		Baumgarte:       0.2,
		Slop:            0.005,
		ContactMargin:   0.05,
		WarmStart:       0.8,
		RestLinear:      0.01,
		RestAngular:     0.01,
		RestDelay:       0.25,
		FallDepth:       5,
	}
}

func (c Config) Validate() error {
	switch {
	case c.Gravity < 0:
		return fmt.Errorf("%w: gravity %f", dynamo.ErrParameterBounds, c.Gravity)
	case c.FloorFriction < 0 || c.BodyFriction < 0:
		return fmt.Errorf("%w: friction must be non-negative", dynamo.ErrParameterBounds)
	case c.LinearDamping < 0 || c.AngularDamping < 0:
		return fmt.Errorf("%w: damping must be non-negative", dynamo.ErrParameterBounds)
	case c.Iterations < 1:
		return fmt.Errorf("%w: iterations %d", dynamo.ErrParameterBounds, c.Iterations)
	case c.FloorHalfExtent <= 0:
		return fmt.Errorf("%w: floor half extent %f", dynamo.ErrParameterBounds, c.FloorHalfExtent)
	case c.Baumgarte < 0 || c.Baumgarte > 1:
		return fmt.Errorf("%w: baumgarte %f", dynamo.ErrParameterBounds, c.Baumgarte)
	case c.WarmStart < 0 || c.WarmStart > 1:
		return fmt.Errorf("%w: warm start %f", dynamo.ErrParameterBounds, c.WarmStart)
	case c.RestLinear < 0 || c.RestAngular < 0 || c.RestDelay < 0:
		return fmt.Errorf("%w: rest thresholds must be non-negative", dynamo.ErrParameterBounds)
	case c.FallDepth <= 0:
		return fmt.Errorf("%w: fall depth %f", dynamo.ErrParameterBounds, c.FallDepth)
	}
	return nil
}

// World is a set of furniture boxes on a kinematic floor driven by a
// ground-motion model.
type World struct {
	mu     sync.Mutex
	cfg    Config
	motion seismic.Model

	bodies []*body
	ready  bool
	steps  int

	floorPos dynamo.Vec3
	floorVel dynamo.Vec3

	contacts []contact
	warm     map[contactKey]impulse
}

func New(cfg Config, motion seismic.Model) *World {
	return &World{
		cfg:    cfg,
		motion: motion,
		warm:   make(map[contactKey]impulse),
	}
}

// Reset discards every body and spawns one box per detection, resting its
// base SpawnOffset above the floor.
func (w *World) Reset(detections []scene.Detection) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.bodies = make([]*body, 0, len(detections))
	for _, d := range detections {
		spec := furniture.Lookup(d.Category)
		id := d.ID
		if id == "" {
			id = uuid.NewString()
		}
		pos := dynamo.Vec3{X: d.X, Y: spec.Dimensions.Y/2 + w.cfg.SpawnOffset, Z: d.Z}
		w.bodies = append(w.bodies, newBody(id, spec, pos, w.cfg.BodyFriction))
	}

	w.ready = true
	w.steps = 0
	w.floorPos = dynamo.Vec3{}
	w.floorVel = dynamo.Vec3{}
	w.contacts = w.contacts[:0]
	clear(w.warm)
}

// Step advances the world by dt with the floor placed at the displacement
// for (magnitude, simTime). It fails with dynamo.ErrNotReset if Reset was
// never called.
func (w *World) Step(dt, magnitude, simTime float64) ([]BodyState, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.ready {
		return nil, dynamo.ErrNotReset
	}
	if dt <= 0 || math.IsNaN(dt) || math.IsInf(dt, 0) {
		return nil, fmt.Errorf("%w: %v", dynamo.ErrInvalidTimestep, dt)
	}

	mag := seismic.Clamp(magnitude)
	w.floorPos = w.motion.DisplacementAt(mag, simTime)
	w.floorVel = w.motion.VelocityAt(mag, simTime)

	linDamp := 1 / (1 + dt*w.cfg.LinearDamping)
	angDamp := 1 / (1 + dt*w.cfg.AngularDamping)
	for _, b := range w.bodies {
		if b.fallen {
			continue
		}
		b.vel.Y -= w.cfg.Gravity * dt
		b.vel = b.vel.Scale(linDamp)
		b.angVel = b.angVel.Scale(angDamp)
		b.updateInertia()
	}

	w.collide()
	w.solve(dt)
	w.settle(dt)

	for _, b := range w.bodies {
		if b.fallen {
			continue
		}
		b.vel = clampLength(b.vel, maxLinearSpeed)
		b.angVel = clampLength(b.angVel, maxAngularSpeed)
		b.pos = b.pos.Add(b.vel.Scale(dt))
		b.rot = b.rot.Integrate(b.angVel, dt)
		if b.pos.Y < -w.cfg.FallDepth {
			// off the edge of the slab, frozen where it was lost
			b.fallen = true
			b.vel = dynamo.Vec3{}
			b.angVel = dynamo.Vec3{}
		}
	}

	for _, b := range w.bodies {
		if !b.valid() {
			return nil, &dynamo.SimulationError{
				Step:     w.steps,
				Time:     simTime,
				ObjectID: b.id,
				Wrapped:  dynamo.ErrInvalidState,
			}
		}
	}
	w.steps++

	return w.snapshot(), nil
}

func (w *World) collide() {
	w.contacts = w.contacts[:0]
	for i, b := range w.bodies {
		if !b.fallen {
			w.contacts = w.floorContacts(i, b, w.contacts)
		}
	}
	for i := 0; i < len(w.bodies); i++ {
		for j := i + 1; j < len(w.bodies); j++ {
			if w.bodies[i].fallen || w.bodies[j].fallen {
				continue
			}
			w.contacts = boxContacts(i, j, w.bodies[i], w.bodies[j], w.contacts)
		}
	}
}

func (w *World) solve(dt float64) {
	for i := range w.contacts {
		c := &w.contacts[i]
		c.prepare(dt, w.cfg)
		if prev, ok := w.warm[c.key]; ok {
			c.warmStart(prev, w.cfg.WarmStart)
		}
	}

	for it := 0; it < w.cfg.Iterations; it++ {
		for i := range w.contacts {
			w.contacts[i].solve(w.floorVel)
		}
	}

	clear(w.warm)
	for i := range w.contacts {
		w.warm[w.contacts[i].key] = w.contacts[i].accumulated()
	}
}

// settle pins bodies that rest on the floor or on another body and have
// stayed slow for RestDelay. Gauss-Seidel leaves a small residual slip at
// resting contacts.
func (w *World) settle(dt float64) {
	for _, b := range w.bodies {
		b.supported = false
	}
	for i := range w.contacts {
		c := &w.contacts[i]
		if c.jn <= 0 {
			continue
		}
		if c.normal.Y > supportNormal {
			c.a.supported = true
		} else if c.b != nil && c.normal.Y < -supportNormal {
			c.b.supported = true
		}
	}

	for _, b := range w.bodies {
		if !b.supported ||
			b.vel.Sub(w.floorVel).Len() > w.cfg.RestLinear ||
			b.angVel.Len() > w.cfg.RestAngular {
			b.restTime = 0
			continue
		}
		b.restTime += dt
		if b.restTime >= w.cfg.RestDelay {
			b.vel = w.floorVel
			b.angVel = dynamo.Vec3{}
		}
	}
}

// Snapshot returns a copy of the current body states.
func (w *World) Snapshot() []BodyState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshot()
}

func (w *World) snapshot() []BodyState {
	out := make([]BodyState, len(w.bodies))
	for i, b := range w.bodies {
		out[i] = b.state()
	}
	return out
}

// FloorPosition is the floor offset applied by the latest Step.
func (w *World) FloorPosition() dynamo.Vec3 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.floorPos
}

func (w *World) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.bodies)
}

// Steps counts successful steps since the last Reset.
func (w *World) Steps() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.steps
}

func clampLength(v dynamo.Vec3, maxLen float64) dynamo.Vec3 {
	if l := v.Len(); l > maxLen {
		return v.Scale(maxLen / l)
	}
	return v
}
