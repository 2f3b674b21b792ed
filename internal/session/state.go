// Package session holds the state shared between the sensor and controller
// roles: the current magnitude and the latest detection list.
//
// A [Store] is the single authoritative copy, kept in memory by the state
// server. Roles reach it through a [Client]: [Local] wraps a Store in the
// same process, [Remote] talks to the state server over HTTP.
//
// # Ownership
//
// The controller is the only writer of Magnitude and the sensor the only
// writer of Detections. The store itself does not enforce this; the sync
// protocol does.
package session

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/san-kum/quakesim/internal/scene"
	"github.com/san-kum/quakesim/internal/seismic"
)

// State is one consistent view of the shared session.
type State struct {
	Magnitude     float64           `json:"magnitude"`
	Detections    []scene.Detection `json:"detections"`
	Version       uint64            `json:"version"`
	LastUpdatedAt time.Time         `json:"last_updated_at"`
}

// Clone returns a deep copy.
func (s State) Clone() State {
	s.Detections = scene.Clone(s.Detections)
	return s
}

// Range bounds the magnitude a store accepts.
type Range struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// FullRange is the whole domain of the ground-motion model.
var FullRange = Range{Min: seismic.MinMagnitude, Max: seismic.MaxMagnitude}

// Clamp bounds m to the range. NaN maps to Min.
func (r Range) Clamp(m float64) float64 {
	if math.IsNaN(m) || m < r.Min {
		return r.Min
	}
	if m > r.Max {
		return r.Max
	}
	return m
}

// Client is how a role reads and writes the shared session.
type Client interface {
	Fetch(ctx context.Context) (State, error)
	PushMagnitude(ctx context.Context, m float64) error
	PushDetections(ctx context.Context, ds []scene.Detection) error
}

// Store is the in-memory authoritative session. Every write bumps Version.
type Store struct {
	mu    sync.RWMutex
	state State
	rng   Range
	now   func() time.Time

	subs   map[int]chan State
	nextID int
}

func NewStore(rng Range, initial float64) *Store {
	s := &Store{
		rng:  rng,
		now:  time.Now,
		subs: make(map[int]chan State),
	}
	s.state = State{
		Magnitude:     rng.Clamp(initial),
		Detections:    []scene.Detection{},
		LastUpdatedAt: s.now(),
	}
	return s
}

func (s *Store) Range() Range {
	return s.rng
}

// Snapshot returns a copy that callers may keep.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// SetMagnitude stores m clamped to the store's range.
func (s *Store) SetMagnitude(m float64) State {
	return s.update(func(st *State) {
		st.Magnitude = s.rng.Clamp(m)
	})
}

// SetDetections replaces the detection list wholesale.
func (s *Store) SetDetections(ds []scene.Detection) State {
	return s.update(func(st *State) {
		st.Detections = scene.Clone(ds)
	})
}

func (s *Store) update(fn func(*State)) State {
	s.mu.Lock()
	fn(&s.state)
	s.state.Version++
	s.state.LastUpdatedAt = s.now()
	out := s.state.Clone()
	for _, ch := range s.subs {
		// keep only the latest state for slow subscribers
		select {
		case <-ch:
		default:
		}
		ch <- out.Clone()
	}
	s.mu.Unlock()
	return out
}

// Subscribe returns a channel that receives the state after every write.
// Slow readers only see the most recent state. Call cancel to unsubscribe.
func (s *Store) Subscribe() (<-chan State, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan State, 1)
	s.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			close(ch)
			s.mu.Unlock()
		})
	}
	return ch, cancel
}

// Local is a Client backed by a Store in the same process.
type Local struct {
	store *Store
}

func NewLocal(store *Store) *Local {
	return &Local{store: store}
}

func (l *Local) Fetch(ctx context.Context) (State, error) {
	if err := ctx.Err(); err != nil {
		return State{}, err
	}
	return l.store.Snapshot(), nil
}

func (l *Local) PushMagnitude(ctx context.Context, m float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.store.SetMagnitude(m)
	return nil
}

func (l *Local) PushDetections(ctx context.Context, ds []scene.Detection) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.store.SetDetections(ds)
	return nil
}
