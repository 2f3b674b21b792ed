package physics

import (
	"math"

	"github.com/san-kum/quakesim/internal/dynamo"
)

const (
	floorIndex = -1

	// edge-edge axes must beat face axes by this factor to be chosen
	edgeAxisBias = 1.05

	// tolerance for treating a vertex as inside the other box
	vertexTolerance = 0.02
)

// contactKey identifies a contact feature across steps for warm starting.
type contactKey struct {
	a, b    int
	feature int
}

type impulse struct {
	normal, t1, t2 float64
}

// contact is one point constraint between body a and body b (nil for the
// floor). The normal points from b into a.
type contact struct {
	key    contactKey
	a, b   *body
	normal dynamo.Vec3
	t1, t2 dynamo.Vec3
	ra, rb dynamo.Vec3
	depth  float64
	mu     float64

	normalMass float64
	t1Mass     float64
	t2Mass     float64
	bias       float64

	jn, jt1, jt2 float64
}

func combineFriction(a, b float64) float64 {
	return (a + b) / 2
}

// floorContacts emits one contact per corner that is below, or within
// margin of, the floor top and over the slab.
func (w *World) floorContacts(i int, b *body, out []contact) []contact {
	top := w.floorPos.Y
	ext := w.cfg.FloorHalfExtent
	mu := combineFriction(b.friction, w.cfg.FloorFriction)

	for k, c := range b.corners() {
		if math.Abs(c.X-w.floorPos.X) > ext || math.Abs(c.Z-w.floorPos.Z) > ext {
			continue
		}
		depth := top - c.Y
		if depth < -w.cfg.ContactMargin {
			continue
		}
		out = append(out, contact{
			key:    contactKey{a: i, b: floorIndex, feature: k},
			a:      b,
			normal: dynamo.UnitY,
			t1:     dynamo.UnitX,
			t2:     dynamo.UnitZ,
			ra:     c.Sub(b.pos),
			depth:  depth,
			mu:     mu,
		})
	}
	return out
}

// boxContacts finds the axis of least penetration between a and b and emits
// the vertices of each box that sit inside the other.
func boxContacts(i, j int, a, b *body, out []contact) []contact {
	if a.pos.Sub(b.pos).Len() > a.radius()+b.radius() {
		return out
	}
	n, depth, ok := leastPenetration(a, b)
	if !ok {
		return out
	}

	t1, t2 := tangents(n)
	mu := combineFriction(a.friction, b.friction)
	mk := func(feature int, p dynamo.Vec3, d float64) contact {
		return contact{
			key:    contactKey{a: i, b: j, feature: feature},
			a:      a,
			b:      b,
			normal: n,
			t1:     t1,
			t2:     t2,
			ra:     p.Sub(a.pos),
			rb:     p.Sub(b.pos),
			depth:  d,
			mu:     mu,
		}
	}

	start := len(out)
	surfaceB := b.pos.Dot(n) + b.projectedRadius(n)
	for k, c := range a.corners() {
		if !b.contains(c, vertexTolerance) {
			continue
		}
		if d := surfaceB - c.Dot(n); d > -vertexTolerance {
			out = append(out, mk(k, c, d))
		}
	}
	surfaceA := a.pos.Dot(n) - a.projectedRadius(n)
	for k, c := range b.corners() {
		if !a.contains(c, vertexTolerance) {
			continue
		}
		if d := c.Dot(n) - surfaceA; d > -vertexTolerance {
			out = append(out, mk(8+k, c, d))
		}
	}

	// edge-on-edge: no vertex is inside, push at the deepest point of a
	if len(out) == start {
		p := a.pos.Sub(n.Scale(a.projectedRadius(n) - depth/2))
		out = append(out, mk(16, p, depth))
	}
	return out
}

// leastPenetration runs the separating axis test over the 15 candidate axes
// of two boxes. The returned normal points from b toward a.
func leastPenetration(a, b *body) (dynamo.Vec3, float64, bool) {
	axA, axB := a.axes(), b.axes()

	var candidates [15]dynamo.Vec3
	n := 0
	for _, ax := range axA {
		candidates[n] = ax
		n++
	}
	for _, ax := range axB {
		candidates[n] = ax
		n++
	}
	faceAxes := n
	for _, u := range axA {
		for _, v := range axB {
			c := u.Cross(v)
			if c.Len() < 1e-6 {
				continue
			}
			candidates[n] = c.Normalize()
			n++
		}
	}

	d := a.pos.Sub(b.pos)
	best := math.Inf(1)
	var normal dynamo.Vec3
	var depth float64
	for idx := 0; idx < n; idx++ {
		l := candidates[idx]
		overlap := a.projectedRadius(l) + b.projectedRadius(l) - math.Abs(d.Dot(l))
		if overlap < 0 {
			return dynamo.Vec3{}, 0, false
		}
		score := overlap
		if idx >= faceAxes {
			score *= edgeAxisBias
		}
		if score < best {
			best = score
			normal = l
			depth = overlap
		}
	}
	if d.Dot(normal) < 0 {
		normal = normal.Neg()
	}
	return normal, depth, true
}

// tangents builds an orthonormal friction basis around n.
func tangents(n dynamo.Vec3) (dynamo.Vec3, dynamo.Vec3) {
	var t dynamo.Vec3
	if math.Abs(n.X) > 0.57735 {
		t = dynamo.Vec3{X: n.Y, Y: -n.X}
	} else {
		t = dynamo.Vec3{Y: n.Z, Z: -n.Y}
	}
	t = t.Normalize()
	return t, n.Cross(t)
}
