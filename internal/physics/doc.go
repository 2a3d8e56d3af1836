// Package physics provides the force model and annealing schedule of the
// relaxation engine.
//
//   - [Force]: inverse-square pairwise repulsion plus [Hard] projection or
//     [Soft] restoring force toward the target radius
//   - [Schedule]: exponentially decaying temperature with an exact zero floor
//   - [Kick]: the Brownian perturbation drawn from an explicit generator
//
// Both types are stateless; a displacement depends only on the positions,
// weights and kick passed in.
//
// # Example
//
//	f := physics.NewForce(0.5, 2.0, physics.Hard)
//	sched := physics.NewSchedule(5, 0.01, 0.0003)
//	kick := physics.Kick(rng, sched.Temperature(i))
//	d := f.Displacement(pos, weights, 0, kick)
package physics
