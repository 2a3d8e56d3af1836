package sim

import (
	"math/rand"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/spherelax/internal/dynamo"
	"github.com/san-kum/spherelax/internal/physics"
)

// Relaxer advances a particle set one annealed relaxation step at a time.
// Each step reads only pre-step positions (Jacobi update) and commits all
// displacements together.
type Relaxer struct {
	set      *dynamo.Set
	force    *physics.Force
	schedule physics.Schedule
	rng      *rand.Rand
	workers  int
	iter     int
	temp     float64

	pos     []r3.Vec
	weights []float64
	kicks   []r3.Vec
	deltas  []r3.Vec
}

func NewRelaxer(set *dynamo.Set, force *physics.Force, schedule physics.Schedule, rng *rand.Rand) *Relaxer {
	n := set.Len()
	return &Relaxer{
		set:      set,
		force:    force,
		schedule: schedule,
		rng:      rng,
		workers:  1,
		weights:  set.Weights(),
		kicks:    make([]r3.Vec, n),
		deltas:   make([]r3.Vec, n),
	}
}

// SetWorkers spreads the force phase over n goroutines. Kicks are still
// drawn serially, so the output does not depend on n.
func (r *Relaxer) SetWorkers(n int) {
	if n < 1 {
		n = 1
	}
	r.workers = n
}

// Step performs one relaxation step and returns the temperature it used.
func (r *Relaxer) Step() float64 {
	t := r.schedule.Temperature(r.iter)
	r.pos = r.set.CopyPositions(r.pos)

	for i := range r.kicks {
		r.kicks[i] = physics.Kick(r.rng, t)
	}

	dynamo.ParallelFor(len(r.pos), r.workers, func(start, end int) {
		for i := start; i < end; i++ {
			r.deltas[i] = r.force.Displacement(r.pos, r.weights, i, r.kicks[i])
		}
	})

	for i, d := range r.deltas {
		r.set.Move(i, d)
	}

	r.iter++
	r.temp = t
	return t
}

func (r *Relaxer) Iteration() int             { return r.iter }
func (r *Relaxer) Temperature() float64       { return r.temp }
func (r *Relaxer) Set() *dynamo.Set           { return r.set }
func (r *Relaxer) Force() *physics.Force      { return r.force }
func (r *Relaxer) Schedule() physics.Schedule { return r.schedule }
func (r *Relaxer) Snapshot() dynamo.Snapshot  { return r.set.Snapshot(r.iter, r.temp) }
