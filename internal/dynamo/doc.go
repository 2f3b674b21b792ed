// Package dynamo provides the core value types shared by the simulation.
//
// The package defines small fixed-size math types used by the rigid-body
// world and the ground-motion model:
//
//   - [Vec3]: 3D vector (x right, y up, z towards the viewer)
//   - [Quat]: unit quaternion for body orientation
//   - [Mat3]: 3x3 matrix for inertia tensors and rotations
//
// All types are plain values; methods never mutate the receiver.
//
// # Example
//
//	p := dynamo.Vec3{X: 1, Y: 2, Z: 3}
//	q := dynamo.QuatFromAxisAngle(dynamo.UnitY, math.Pi/2)
//	r := q.Rotate(p)
//
// # Thread Safety
//
// Values are immutable and safe to share. Containers built on top of them,
// such as the physics world, document their own locking.
package dynamo
