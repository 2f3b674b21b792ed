package physics

import (
	"math"

	"github.com/san-kum/quakesim/internal/dynamo"
)

func (c *contact) effectiveMass(dir dynamo.Vec3) float64 {
	k := c.a.invMass + c.a.invInertiaWorld.MulVec(c.ra.Cross(dir)).Cross(c.ra).Dot(dir)
	if c.b != nil {
		k += c.b.invMass + c.b.invInertiaWorld.MulVec(c.rb.Cross(dir)).Cross(c.rb).Dot(dir)
	}
	if k <= 0 {
		return 0
	}
	return 1 / k
}

// prepare computes effective masses and the velocity bias. A separated
// contact (negative depth) only allows closing the gap in one step; a
// penetrating one is pushed out a fraction of the depth beyond the slop.
func (c *contact) prepare(dt float64, cfg Config) {
	c.normalMass = c.effectiveMass(c.normal)
	c.t1Mass = c.effectiveMass(c.t1)
	c.t2Mass = c.effectiveMass(c.t2)

	if c.depth < 0 {
		c.bias = c.depth / dt
	} else {
		c.bias = cfg.Baumgarte / dt * math.Max(0, c.depth-cfg.Slop)
	}
}

func (c *contact) relativeVelocity(floorVel dynamo.Vec3) dynamo.Vec3 {
	v := c.a.pointVelocity(c.ra)
	if c.b != nil {
		return v.Sub(c.b.pointVelocity(c.rb))
	}
	return v.Sub(floorVel)
}

func (c *contact) apply(p dynamo.Vec3) {
	c.a.applyImpulse(p, c.ra)
	if c.b != nil {
		c.b.applyImpulse(p.Neg(), c.rb)
	}
}

func (c *contact) warmStart(prev impulse, factor float64) {
	c.jn = prev.normal * factor
	c.jt1 = prev.t1 * factor
	c.jt2 = prev.t2 * factor
	c.apply(c.normal.Scale(c.jn).Add(c.t1.Scale(c.jt1)).Add(c.t2.Scale(c.jt2)))
}

// solve runs one Gauss-Seidel pass over the contact: two friction rows
// bounded by the accumulated normal impulse, then the normal row.
func (c *contact) solve(floorVel dynamo.Vec3) {
	limit := c.mu * c.jn

	vr := c.relativeVelocity(floorVel)
	old := c.jt1
	c.jt1 = clamp(old-vr.Dot(c.t1)*c.t1Mass, -limit, limit)
	c.apply(c.t1.Scale(c.jt1 - old))

	vr = c.relativeVelocity(floorVel)
	old = c.jt2
	c.jt2 = clamp(old-vr.Dot(c.t2)*c.t2Mass, -limit, limit)
	c.apply(c.t2.Scale(c.jt2 - old))

	vn := c.relativeVelocity(floorVel).Dot(c.normal)
	old = c.jn
	c.jn = math.Max(0, old+c.normalMass*(c.bias-vn))
	c.apply(c.normal.Scale(c.jn - old))
}

func (c *contact) accumulated() impulse {
	return impulse{normal: c.jn, t1: c.jt1, t2: c.jt2}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
