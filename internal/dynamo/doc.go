// Package dynamo provides the numeric state shared by the relaxation engine.
//
// The package owns positions and weights only; nothing here knows about
// forces, schedules or rendering:
//
//   - [Particle]: a point mass with a position and a positive weight
//   - [Set]: ordered, fixed-size collection of particles (index is identity)
//   - [Snapshot]: read-only copy of a set handed to observers and exporters
//   - [WeightDist]: source of particle weights at construction
//
// # Example
//
//	rng := rand.New(rand.NewSource(1))
//	set, err := dynamo.NewSet(100, 2.0, dynamo.ConstantWeight(1), rng)
//	if err != nil {
//	    return err
//	}
//	snap := set.Snapshot(0, 0)
//
// # Thread Safety
//
// A [Set] is NOT safe for concurrent mutation. Readers get a [Snapshot]
// once a relaxation step has fully committed.
package dynamo
