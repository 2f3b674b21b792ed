// Package syncproto keeps the sensor and controller roles consistent through
// a shared session store they both poll.
//
// Each field has exactly one writer: the controller owns the magnitude and
// the sensor owns the detection list. A [Node] pushes its own field
// immediately on local change and adopts the other role's field on every
// poll, so both sides converge within one poll interval after the last write.
package syncproto

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/san-kum/quakesim/internal/log"
	"github.com/san-kum/quakesim/internal/scene"
	"github.com/san-kum/quakesim/internal/session"
)

var (
	// ErrNotOwner is returned when a role writes a field it does not own.
	ErrNotOwner = errors.New("syncproto: field not owned by this role")

	ErrUnknownRole = errors.New("syncproto: unknown role")
)

// DefaultInterval matches the poll period of both device roles.
const DefaultInterval = 500 * time.Millisecond

type Role int

const (
	Controller Role = iota
	Sensor
)

func (r Role) String() string {
	switch r {
	case Controller:
		return "controller"
	case Sensor:
		return "sensor"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// ParseRole accepts "controller"/"laptop" and "sensor"/"phone".
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "controller", "laptop":
		return Controller, nil
	case "sensor", "phone":
		return Sensor, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

// Snapshot is the node's local view of the session.
type Snapshot struct {
	Role       Role
	Magnitude  float64
	Detections []scene.Detection
	Version    uint64
}

// Status describes sync health for the UI.
type Status struct {
	LastPoll            time.Time
	LastSuccess         time.Time
	LastError           error
	ConsecutiveFailures int
	Polls               uint64
	Failures            uint64
}

// Healthy reports whether the last poll succeeded.
func (s Status) Healthy() bool {
	return s.Polls > 0 && s.ConsecutiveFailures == 0
}

type Option func(*Node)

func WithInterval(d time.Duration) Option {
	return func(n *Node) {
		if d > 0 {
			n.interval = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(n *Node) {
		if l != nil {
			n.logger = l
		}
	}
}

// WithRange clamps locally set magnitudes the same way the store does.
func WithRange(r session.Range) Option {
	return func(n *Node) {
		n.rng = r
	}
}

// WithMagnitude sets the local magnitude before the first poll.
func WithMagnitude(m float64) Option {
	return func(n *Node) {
		n.magnitude = m
	}
}

// Node is one role's end of the protocol.
type Node struct {
	role     Role
	client   session.Client
	interval time.Duration
	rng      session.Range
	logger   *slog.Logger

	mu         sync.RWMutex
	magnitude  float64
	detections []scene.Detection
	version    uint64
	// controller only: whether the local magnitude has been set or seeded
	seeded   bool
	status   Status
	onChange []func(Snapshot)
}

func NewNode(role Role, client session.Client, opts ...Option) *Node {
	n := &Node{
		role:       role,
		client:     client,
		interval:   DefaultInterval,
		rng:        session.FullRange,
		detections: []scene.Detection{},
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.logger == nil {
		n.logger = log.With("component", "sync", "role", role.String())
	}
	n.magnitude = n.rng.Clamp(n.magnitude)
	return n
}

func (n *Node) Role() Role {
	return n.role
}

func (n *Node) Interval() time.Duration {
	return n.interval
}

// Run polls immediately and then every interval until ctx is done. Poll
// failures are logged and do not stop the loop.
func (n *Node) Run(ctx context.Context) error {
	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()

	n.Poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n.Poll(ctx)
		}
	}
}

// Poll fetches the shared state once and adopts the field this role does
// not own. On failure local state is left untouched.
func (n *Node) Poll(ctx context.Context) error {
	st, err := n.client.Fetch(ctx)

	n.mu.Lock()
	now := time.Now()
	n.status.LastPoll = now
	n.status.Polls++
	if err != nil {
		n.status.LastError = err
		n.status.Failures++
		n.status.ConsecutiveFailures++
		failures := n.status.ConsecutiveFailures
		n.mu.Unlock()
		if ctx.Err() == nil {
			n.logger.Warn("poll failed", "error", err, "consecutive", failures)
		}
		return fmt.Errorf("poll: %w", err)
	}
	n.status.LastSuccess = now
	n.status.LastError = nil
	n.status.ConsecutiveFailures = 0

	changed := false
	switch n.role {
	case Sensor:
		if m := n.rng.Clamp(st.Magnitude); m != n.magnitude {
			n.magnitude = m
			changed = true
		}
	case Controller:
		if !n.seeded {
			n.magnitude = n.rng.Clamp(st.Magnitude)
			n.seeded = true
			changed = true
		}
		if !slices.Equal(st.Detections, n.detections) {
			n.detections = scene.Clone(st.Detections)
			changed = true
		}
	}
	n.version = st.Version
	snap, hooks := n.snapshotLocked(), slices.Clone(n.onChange)
	n.mu.Unlock()

	if changed {
		n.logger.Debug("adopted remote state", "version", st.Version,
			"magnitude", snap.Magnitude, "detections", len(snap.Detections))
		notify(hooks, snap)
	}
	return nil
}

// SetMagnitude updates the controller's magnitude and pushes it at once.
// The local value is kept even if the push fails; the store converges on the
// next successful write.
func (n *Node) SetMagnitude(ctx context.Context, m float64) error {
	if n.role != Controller {
		return ErrNotOwner
	}

	n.mu.Lock()
	n.magnitude = n.rng.Clamp(m)
	n.seeded = true
	value := n.magnitude
	snap, hooks := n.snapshotLocked(), slices.Clone(n.onChange)
	n.mu.Unlock()

	notify(hooks, snap)

	if err := n.client.PushMagnitude(ctx, value); err != nil {
		n.logger.Warn("push magnitude failed", "magnitude", value, "error", err)
		return fmt.Errorf("push magnitude: %w", err)
	}
	return nil
}

// PublishDetections replaces the sensor's detection list and pushes it.
func (n *Node) PublishDetections(ctx context.Context, ds []scene.Detection) error {
	if n.role != Sensor {
		return ErrNotOwner
	}

	n.mu.Lock()
	n.detections = scene.Clone(ds)
	snap, hooks := n.snapshotLocked(), slices.Clone(n.onChange)
	n.mu.Unlock()

	notify(hooks, snap)

	if err := n.client.PushDetections(ctx, snap.Detections); err != nil {
		n.logger.Warn("push detections failed", "count", len(ds), "error", err)
		return fmt.Errorf("push detections: %w", err)
	}
	return nil
}

func (n *Node) Magnitude() float64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.magnitude
}

// Detections returns a copy of the local detection list.
func (n *Node) Detections() []scene.Detection {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return scene.Clone(n.detections)
}

func (n *Node) Snapshot() Snapshot {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.snapshotLocked()
}

func (n *Node) Status() Status {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.status
}

// OnChange registers fn to run after local state changes, either from a
// local write or from adopting the other role's field. Hooks run on the
// caller's goroutine and must not block.
func (n *Node) OnChange(fn func(Snapshot)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onChange = append(n.onChange, fn)
}

func (n *Node) snapshotLocked() Snapshot {
	return Snapshot{
		Role:       n.role,
		Magnitude:  n.magnitude,
		Detections: scene.Clone(n.detections),
		Version:    n.version,
	}
}

func notify(hooks []func(Snapshot), snap Snapshot) {
	for _, fn := range hooks {
		fn(snap)
	}
}
