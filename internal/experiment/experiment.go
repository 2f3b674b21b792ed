// Package experiment runs a fixed-magnitude earthquake over a room of
// detected furniture offline, recording every frame.
package experiment

import (
	"context"
	"errors"
	"fmt"

	"github.com/san-kum/quakesim/internal/dynamo"
	"github.com/san-kum/quakesim/internal/metrics"
	"github.com/san-kum/quakesim/internal/physics"
	"github.com/san-kum/quakesim/internal/scene"
	"github.com/san-kum/quakesim/internal/seismic"
)

var ErrNotSetup = errors.New("experiment: not setup")

type Config struct {
	Scene      string
	Detections []scene.Detection
	Magnitude  float64
	Dt         float64
	Duration   float64
	Physics    physics.Config
	Seismic    seismic.Model
}

// Frame is the room at one instant.
type Frame struct {
	T      float64
	Floor  dynamo.Vec3
	Bodies []physics.BodyState
}

type Result struct {
	Frames  []Frame
	Times   []float64
	Metrics map[string]float64
}

// Floor returns the horizontal floor displacement along x for every frame.
func (r *Result) Floor() []float64 {
	out := make([]float64, len(r.Frames))
	for i, f := range r.Frames {
		out[i] = f.Floor.X
	}
	return out
}

// Observer is notified after every step.
type Observer interface {
	OnStep(f Frame)
}

type ObserverFunc func(Frame)

func (fn ObserverFunc) OnStep(f Frame) { fn(f) }

type Experiment struct {
	cfg       Config
	world     *physics.World
	metrics   []metrics.Metric
	observers []Observer
}

func New(cfg Config) *Experiment {
	return &Experiment{cfg: cfg}
}

// Setup validates the configuration, builds the world and spawns the
// detections.
func (e *Experiment) Setup(ms []metrics.Metric) error {
	if e.cfg.Dt <= 0 || e.cfg.Duration <= 0 {
		return fmt.Errorf("%w: dt=%v duration=%v", dynamo.ErrInvalidTimestep, e.cfg.Dt, e.cfg.Duration)
	}
	if err := e.cfg.Physics.Validate(); err != nil {
		return err
	}
	e.world = physics.New(e.cfg.Physics, e.cfg.Seismic)
	e.world.Reset(e.cfg.Detections)
	e.metrics = ms
	for _, m := range e.metrics {
		m.Reset()
	}
	return nil
}

func (e *Experiment) AddObserver(o Observer) {
	e.observers = append(e.observers, o)
}

// Run steps the world until Duration or ctx is done. A cancelled run
// returns the frames recorded so far alongside ctx.Err().
func (e *Experiment) Run(ctx context.Context) (*Result, error) {
	if e.world == nil {
		return nil, ErrNotSetup
	}

	steps := int(e.cfg.Duration/e.cfg.Dt + 0.5)
	res := &Result{
		Frames:  make([]Frame, 0, steps),
		Times:   make([]float64, 0, steps),
		Metrics: make(map[string]float64, len(e.metrics)),
	}

	for i := 0; i < steps; i++ {
		if err := ctx.Err(); err != nil {
			e.collect(res)
			return res, err
		}

		t := float64(i) * e.cfg.Dt
		bodies, err := e.world.Step(e.cfg.Dt, e.cfg.Magnitude, t)
		if err != nil {
			e.collect(res)
			return res, err
		}

		f := Frame{T: t, Floor: e.world.FloorPosition(), Bodies: bodies}
		res.Frames = append(res.Frames, f)
		res.Times = append(res.Times, t)

		for _, m := range e.metrics {
			m.Observe(t, f.Floor, bodies)
		}
		for _, o := range e.observers {
			o.OnStep(f)
		}
	}

	e.collect(res)
	return res, nil
}

func (e *Experiment) collect(res *Result) {
	for _, m := range e.metrics {
		res.Metrics[m.Name()] = m.Value()
	}
}

// World exposes the underlying physics world.
func (e *Experiment) World() *physics.World {
	return e.world
}
