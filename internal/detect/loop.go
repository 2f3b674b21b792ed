// Package detect runs the sensor's periodic capture-and-analyze cycle.
//
// A [Loop] holds its progress in a single atomic phase. A tick only starts a
// cycle when the phase is Idle; otherwise it is skipped, so at most one
// analysis request is ever in flight no matter how slow the vision service
// is. Every cycle ends back in Idle, including failed ones.
//
// # Stopping
//
// Cancelling the context passed to [Loop.Run] halts the timer. A request
// already in flight is allowed to finish, but its result is dropped. Use
// [Loop.Wait] to block until it has.
package detect

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/san-kum/quakesim/internal/camera"
	"github.com/san-kum/quakesim/internal/log"
	"github.com/san-kum/quakesim/internal/scene"
	"github.com/san-kum/quakesim/internal/vision"
)

const (
	DefaultInterval = 500 * time.Millisecond
	DefaultTimeout  = 20 * time.Second
)

type Phase int32

const (
	Idle Phase = iota
	Capturing
	Awaiting
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Capturing:
		return "capturing"
	case Awaiting:
		return "awaiting"
	default:
		return fmt.Sprintf("phase(%d)", int32(p))
	}
}

type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeOK
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeFailed:
		return "failed"
	default:
		return "none"
	}
}

// Sink is where a cycle reads the current magnitude and publishes results.
// A sensor-role syncproto.Node satisfies it.
type Sink interface {
	Magnitude() float64
	PublishDetections(ctx context.Context, ds []scene.Detection) error
}

// Status is the user-visible state of the loop.
type Status struct {
	Phase       Phase
	LastOutcome Outcome
	LastError   error
	LastCycle   time.Time
	Detections  int
	Cycles      uint64
	Failures    uint64
	Skips       uint64
	Discarded   uint64
}

type Option func(*Loop)

func WithInterval(d time.Duration) Option {
	return func(l *Loop) {
		if d > 0 {
			l.interval = d
		}
	}
}

// WithTimeout bounds a single capture plus analysis.
func WithTimeout(d time.Duration) Option {
	return func(l *Loop) {
		if d > 0 {
			l.timeout = d
		}
	}
}

func WithLogger(lg *slog.Logger) Option {
	return func(l *Loop) {
		if lg != nil {
			l.logger = lg
		}
	}
}

type Loop struct {
	source   camera.Source
	analyzer vision.Analyzer
	sink     Sink
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger

	phase   atomic.Int32
	stopped atomic.Bool
	wg      sync.WaitGroup

	mu         sync.Mutex
	status     Status
	detections []scene.Detection
}

func New(source camera.Source, analyzer vision.Analyzer, sink Sink, opts ...Option) *Loop {
	l := &Loop{
		source:     source,
		analyzer:   analyzer,
		sink:       sink,
		interval:   DefaultInterval,
		timeout:    DefaultTimeout,
		detections: []scene.Detection{},
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = log.With("component", "detect")
	}
	return l
}

// Run ticks every interval until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	l.stopped.Store(false)
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.stopped.Store(true)
			return nil
		case <-ticker.C:
			l.Tick(ctx)
		}
	}
}

// Tick starts a cycle in the background if the loop is idle and reports
// whether it did. A skipped tick leaves LastOutcome on the previous cycle.
func (l *Loop) Tick(ctx context.Context) bool {
	if !l.phase.CompareAndSwap(int32(Idle), int32(Capturing)) {
		l.mu.Lock()
		l.status.Skips++
		l.mu.Unlock()
		return false
	}
	l.wg.Add(1)
	go l.cycle(ctx)
	return true
}

// Wait blocks until no cycle is running.
func (l *Loop) Wait() {
	l.wg.Wait()
}

func (l *Loop) cycle(ctx context.Context) {
	defer l.wg.Done()
	defer l.phase.Store(int32(Idle))

	// the request outlives a stop; its result is discarded below
	reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
	defer cancel()

	frame, err := l.source.Capture(reqCtx)
	if err != nil {
		l.fail(fmt.Errorf("capture: %w", err))
		return
	}

	l.phase.Store(int32(Awaiting))
	ds, err := l.analyzer.Analyze(reqCtx, frame, l.sink.Magnitude())
	if err != nil {
		l.fail(fmt.Errorf("analyze: %w", err))
		return
	}
	if ds == nil {
		ds = []scene.Detection{}
	}

	if l.stopped.Load() || ctx.Err() != nil {
		l.mu.Lock()
		l.status.Discarded++
		l.mu.Unlock()
		l.logger.Debug("discarding result after stop", "detections", len(ds))
		return
	}

	l.mu.Lock()
	l.detections = scene.Clone(ds)
	l.status.Cycles++
	l.status.LastCycle = time.Now()
	l.status.Detections = len(ds)
	l.mu.Unlock()

	if err := l.sink.PublishDetections(reqCtx, ds); err != nil {
		l.fail(fmt.Errorf("publish: %w", err))
		return
	}

	l.mu.Lock()
	l.status.LastOutcome = OutcomeOK
	l.status.LastError = nil
	l.mu.Unlock()
	l.logger.Debug("cycle complete", "detections", len(ds))
}

func (l *Loop) fail(err error) {
	l.mu.Lock()
	l.status.Failures++
	l.status.LastOutcome = OutcomeFailed
	l.status.LastError = err
	l.mu.Unlock()
	l.logger.Warn("detection cycle failed", "error", err)
}

func (l *Loop) Phase() Phase {
	return Phase(l.phase.Load())
}

func (l *Loop) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.status
	s.Phase = l.Phase()
	return s
}

// Detections returns the result of the last successful cycle.
func (l *Loop) Detections() []scene.Detection {
	l.mu.Lock()
	defer l.mu.Unlock()
	return scene.Clone(l.detections)
}
