// Package tui is the controller's terminal dashboard. It edits the shared
// magnitude, lists the sensor's detections and runs a local copy of the
// room so the operator can watch furniture react.
package tui

import (
	"context"
	"math"
	"slices"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/quakesim/internal/physics"
	"github.com/san-kum/quakesim/internal/scene"
	"github.com/san-kum/quakesim/internal/seismic"
	"github.com/san-kum/quakesim/internal/session"
	"github.com/san-kum/quakesim/internal/syncproto"
)

const (
	frameInterval = 16 * time.Millisecond
	historyLen    = 120
	fineStep      = 0.1
	coarseStep    = 1.0
)

type Config struct {
	Node    *syncproto.Node
	Range   session.Range
	Physics physics.Config
	Seismic seismic.Model
	Dt      float64
}

type (
	tickMsg     time.Time
	snapshotMsg syncproto.Snapshot
	pushMsg     struct{ err error }
)

type model struct {
	rng    session.Range
	push   func(float64)
	status func() syncproto.Status

	world   *physics.World
	dt      float64
	simTime float64
	bodies  []physics.BodyState
	floor   []float64

	magnitude  float64
	touched    bool
	detections []scene.Detection
	sync       syncproto.Status
	pushErr    error
	simErr     error

	width, height int
}

func newModel(cfg Config, push func(float64), status func() syncproto.Status) model {
	dt := cfg.Dt
	if dt <= 0 {
		dt = frameInterval.Seconds()
	}
	w := physics.New(cfg.Physics, cfg.Seismic)
	w.Reset(nil)
	return model{
		rng:        cfg.Range,
		push:       push,
		status:     status,
		world:      w,
		dt:         dt,
		magnitude:  cfg.Range.Min,
		detections: []scene.Detection{},
		floor:      make([]float64, 0, historyLen),
		width:      80,
		height:     24,
	}
}

func tick() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) Init() tea.Cmd { return tick() }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case snapshotMsg:
		m.adopt(syncproto.Snapshot(msg))
		return m, nil
	case pushMsg:
		m.pushErr = msg.err
		return m, nil
	case tickMsg:
		if err := m.step(); err != nil {
			m.simErr = err
			return m, tea.Quit
		}
		return m, tick()
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "left", "h":
		m.setMagnitude(m.magnitude - fineStep)
	case "right", "l":
		m.setMagnitude(m.magnitude + fineStep)
	case "up", "k":
		m.setMagnitude(m.magnitude + coarseStep)
	case "down", "j":
		m.setMagnitude(m.magnitude - coarseStep)
	case "r":
		m.setMagnitude(m.rng.Min)
	}
	return m, nil
}

func (m *model) setMagnitude(v float64) {
	v = m.rng.Clamp(math.Round(v*10) / 10)
	m.touched = true
	if v == m.magnitude {
		return
	}
	m.magnitude = v
	if m.push != nil {
		m.push(v)
	}
}

// adopt takes the detections from a node snapshot. The magnitude is only
// taken until the operator first changes it, which covers seeding from the
// store on startup.
func (m *model) adopt(s syncproto.Snapshot) {
	if !m.touched {
		m.magnitude = s.Magnitude
	}
	if !slices.Equal(m.detections, s.Detections) {
		m.detections = scene.Clone(s.Detections)
		m.world.Reset(m.detections)
		m.simTime = 0
	}
}

func (m *model) step() error {
	bodies, err := m.world.Step(m.dt, m.magnitude, m.simTime)
	if err != nil {
		return err
	}
	m.simTime += m.dt
	m.bodies = bodies

	m.floor = append(m.floor, m.world.FloorPosition().X)
	if len(m.floor) > historyLen {
		m.floor = m.floor[1:]
	}
	if m.status != nil {
		m.sync = m.status()
	}
	return nil
}

// pusher forwards magnitudes to the node one at a time. Only the newest
// pending value is kept.
type pusher struct {
	ch chan float64
}

func newPusher(ctx context.Context, node *syncproto.Node, send func(tea.Msg)) *pusher {
	p := &pusher{ch: make(chan float64, 1)}
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case v := <-p.ch:
				err := node.SetMagnitude(ctx, v)
				send(pushMsg{err: err})
			}
		}
	}()
	return p
}

func (p *pusher) push(v float64) {
	for {
		select {
		case p.ch <- v:
			return
		default:
		}
		select {
		case <-p.ch:
		default:
		}
	}
}

// Run blocks until the operator quits or ctx is cancelled.
func Run(ctx context.Context, cfg Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var p *tea.Program
	send := func(msg tea.Msg) {
		if p != nil {
			p.Send(msg)
		}
	}
	pu := newPusher(ctx, cfg.Node, send)

	m := newModel(cfg, pu.push, cfg.Node.Status)
	m.adopt(cfg.Node.Snapshot())

	p = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	cfg.Node.OnChange(func(s syncproto.Snapshot) { p.Send(snapshotMsg(s)) })

	final, err := p.Run()
	if err != nil {
		return err
	}
	if fm, ok := final.(model); ok && fm.simErr != nil {
		return fm.simErr
	}
	return nil
}
