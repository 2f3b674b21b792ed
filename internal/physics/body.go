package physics

import (
	"math"

	"github.com/san-kum/quakesim/internal/dynamo"
	"github.com/san-kum/quakesim/internal/furniture"
)

// ToppleAngle is the tilt past which a body counts as knocked over.
const ToppleAngle = math.Pi / 4

// BodyState is the externally visible pose and motion of one body.
type BodyState struct {
	ObjectID        string
	Category        string
	Position        dynamo.Vec3
	Orientation     dynamo.Quat
	LinearVelocity  dynamo.Vec3
	AngularVelocity dynamo.Vec3
	Dimensions      dynamo.Vec3
	Mass            float64
	// Fallen is set once the body has dropped off the edge of the floor.
	Fallen bool
}

// Tilt is the angle between the body's up axis and world up.
func (s BodyState) Tilt() float64 {
	return s.Orientation.Tilt()
}

// Toppled reports a body tilted past ToppleAngle or lost off the floor.
func (s BodyState) Toppled() bool {
	return s.Fallen || s.Tilt() > ToppleAngle
}

// KineticEnergy sums translational and rotational energy.
func (s BodyState) KineticEnergy() float64 {
	lin := 0.5 * s.Mass * s.LinearVelocity.Dot(s.LinearVelocity)

	inertia := boxInertia(s.Mass, s.Dimensions)
	local := s.Orientation.Conjugate().Rotate(s.AngularVelocity)
	rot := 0.5 * (inertia.X*local.X*local.X + inertia.Y*local.Y*local.Y + inertia.Z*local.Z*local.Z)
	return lin + rot
}

type body struct {
	id       string
	category string
	dims     dynamo.Vec3
	half     dynamo.Vec3
	mass     float64
	invMass  float64
	friction float64

	// diagonal of the body-frame inverse inertia tensor
	invInertiaLocal dynamo.Vec3
	invInertiaWorld dynamo.Mat3

	pos    dynamo.Vec3
	rot    dynamo.Quat
	vel    dynamo.Vec3
	angVel dynamo.Vec3

	supported bool
	restTime  float64
	fallen    bool
}

func newBody(id string, spec furniture.Spec, pos dynamo.Vec3, friction float64) *body {
	inertia := boxInertia(spec.Mass, spec.Dimensions)
	b := &body{
		id:       id,
		category: spec.Category,
		dims:     spec.Dimensions,
		half:     spec.HalfExtents(),
		mass:     spec.Mass,
		invMass:  1 / spec.Mass,
		friction: friction,
		invInertiaLocal: dynamo.Vec3{
			X: 1 / inertia.X,
			Y: 1 / inertia.Y,
			Z: 1 / inertia.Z,
		},
		pos: pos,
		rot: dynamo.IdentityQuat,
	}
	b.updateInertia()
	return b
}

// boxInertia returns the principal moments of a solid box.
func boxInertia(m float64, d dynamo.Vec3) dynamo.Vec3 {
	return dynamo.Vec3{
		X: m / 12 * (d.Y*d.Y + d.Z*d.Z),
		Y: m / 12 * (d.X*d.X + d.Z*d.Z),
		Z: m / 12 * (d.X*d.X + d.Y*d.Y),
	}
}

func (b *body) updateInertia() {
	r := b.rot.Mat3()
	inv := dynamo.Diag(b.invInertiaLocal.X, b.invInertiaLocal.Y, b.invInertiaLocal.Z)
	b.invInertiaWorld = r.Mul(inv).Mul(r.Transpose())
}

// applyImpulse changes momentum by p applied at offset r from the center.
func (b *body) applyImpulse(p, r dynamo.Vec3) {
	b.vel = b.vel.Add(p.Scale(b.invMass))
	b.angVel = b.angVel.Add(b.invInertiaWorld.MulVec(r.Cross(p)))
}

// pointVelocity is the world velocity of the material point at offset r.
func (b *body) pointVelocity(r dynamo.Vec3) dynamo.Vec3 {
	return b.vel.Add(b.angVel.Cross(r))
}

// corners returns the eight world-space vertices.
func (b *body) corners() [8]dynamo.Vec3 {
	var out [8]dynamo.Vec3
	for i := 0; i < 8; i++ {
		local := dynamo.Vec3{
			X: b.half.X * sign(i&1),
			Y: b.half.Y * sign(i&2),
			Z: b.half.Z * sign(i&4),
		}
		out[i] = b.pos.Add(b.rot.Rotate(local))
	}
	return out
}

// axes returns the world directions of the local x, y and z axes.
func (b *body) axes() [3]dynamo.Vec3 {
	m := b.rot.Mat3()
	return [3]dynamo.Vec3{m.Column(0), m.Column(1), m.Column(2)}
}

// radius is the bounding sphere radius.
func (b *body) radius() float64 {
	return b.half.Len()
}

// projectedRadius is the half length of the box's shadow on axis n.
func (b *body) projectedRadius(n dynamo.Vec3) float64 {
	ax := b.axes()
	return b.half.X*math.Abs(ax[0].Dot(n)) +
		b.half.Y*math.Abs(ax[1].Dot(n)) +
		b.half.Z*math.Abs(ax[2].Dot(n))
}

// contains reports whether p lies inside the box grown by tol.
func (b *body) contains(p dynamo.Vec3, tol float64) bool {
	local := b.rot.Conjugate().Rotate(p.Sub(b.pos))
	return math.Abs(local.X) <= b.half.X+tol &&
		math.Abs(local.Y) <= b.half.Y+tol &&
		math.Abs(local.Z) <= b.half.Z+tol
}

func (b *body) state() BodyState {
	return BodyState{
		ObjectID:        b.id,
		Category:        b.category,
		Position:        b.pos,
		Orientation:     b.rot,
		LinearVelocity:  b.vel,
		AngularVelocity: b.angVel,
		Dimensions:      b.dims,
		Mass:            b.mass,
		Fallen:          b.fallen,
	}
}

func (b *body) valid() bool {
	return b.pos.IsValid() && b.vel.IsValid() && b.angVel.IsValid() && b.rot.IsValid()
}

func sign(bit int) float64 {
	if bit != 0 {
		return 1
	}
	return -1
}
