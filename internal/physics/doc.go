// Package physics simulates furniture as rigid boxes resting on a shaking
// floor.
//
// A [World] holds one dynamic box per detected object plus a kinematic floor
// slab whose horizontal offset is dictated by a [seismic.Model]. Every call to
// [World.Step] places the floor, integrates gravity and damping, then resolves
// floor and box-box contacts with a sequential-impulse solver:
//
//   - [World.Reset]: discard all bodies and spawn new ones from detections
//   - [World.Step]: advance the simulation by dt at a given magnitude
//   - [World.Snapshot]: read-only copy of the current body states
//
// # Example
//
//	w := physics.New(physics.DefaultConfig(), seismic.DefaultModel())
//	w.Reset([]scene.Detection{scene.NewDetection("bookshelf", 0, -5)})
//	for i := 0; i < 100; i++ {
//	    states, err := w.Step(1.0/60, 9, float64(i)/60)
//	    if err != nil {
//	        return err
//	    }
//	    render(states)
//	}
//
// # Thread Safety
//
// World methods are safe to call from multiple goroutines; a mutex serializes
// them so there is exactly one writer at a time.
package physics
