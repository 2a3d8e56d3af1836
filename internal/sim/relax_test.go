package sim_test

import (
	"math"
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/spherelax/internal/dynamo"
	"github.com/san-kum/spherelax/internal/physics"
	"github.com/san-kum/spherelax/internal/sim"
)

const radius = 2.0

var frozen = physics.NewSchedule(0, 0, 0)

func randomRelaxer(n int, seed int64, mode physics.Confinement, sched physics.Schedule) *sim.Relaxer {
	rng := rand.New(rand.NewSource(seed))
	set, err := dynamo.NewSet(n, radius, dynamo.ConstantWeight(1), rng)
	Expect(err).NotTo(HaveOccurred())
	return sim.NewRelaxer(set, physics.NewForce(0.5, radius, mode), sched, rng)
}

func fixedRelaxer(pos []r3.Vec, mode physics.Confinement) *sim.Relaxer {
	ps := make([]dynamo.Particle, len(pos))
	for i, p := range pos {
		ps[i] = dynamo.Particle{Pos: p, Weight: 1}
	}
	set, err := dynamo.FromParticles(ps)
	Expect(err).NotTo(HaveOccurred())
	return sim.NewRelaxer(set, physics.NewForce(0.5, radius, mode), frozen, rand.New(rand.NewSource(1)))
}

func expectFinite(set *dynamo.Set) {
	for i := 0; i < set.Len(); i++ {
		p := set.At(i).Pos
		for _, c := range []float64{p.X, p.Y, p.Z} {
			Expect(math.IsNaN(c) || math.IsInf(c, 0)).To(BeFalse(), "particle %d = %v", i, p)
		}
	}
}

var _ = Describe("Relaxer", func() {
	Describe("hard confinement", func() {
		It("keeps every particle on the target sphere after every step", func() {
			r := randomRelaxer(50, 11, physics.Hard, physics.NewSchedule(5, 0.01, 0.0003))
			for step := 0; step < 300; step++ {
				r.Step()
				for i := 0; i < r.Set().Len(); i++ {
					Expect(r3.Norm(r.Set().At(i).Pos)).To(BeNumerically("~", radius, 1e-9))
				}
			}
		})

		It("holds a single particle on the sphere under the kick alone", func() {
			r := randomRelaxer(1, 5, physics.Hard, physics.NewSchedule(3, 0, 0))
			for step := 0; step < 100; step++ {
				r.Step()
				Expect(r3.Norm(r.Set().At(0).Pos)).To(BeNumerically("~", radius, 1e-9))
			}
		})

		It("leaves an antipodal pair in place at zero temperature", func() {
			r := fixedRelaxer([]r3.Vec{{Z: radius}, {Z: -radius}}, physics.Hard)
			for step := 0; step < 10; step++ {
				r.Step()
			}
			Expect(r3.Norm(r3.Sub(r.Set().At(0).Pos, r3.Vec{Z: radius}))).To(BeNumerically("<", 1e-12))
			Expect(r3.Norm(r3.Sub(r.Set().At(1).Pos, r3.Vec{Z: -radius}))).To(BeNumerically("<", 1e-12))
		})
	})

	Describe("degenerate pairs", func() {
		for _, mode := range []physics.Confinement{physics.Hard, physics.Soft} {
			It("never produces NaN for coincident particles in "+mode.String()+" mode", func() {
				p := r3.Vec{X: 1, Y: 1, Z: 1}
				r := fixedRelaxer([]r3.Vec{p, p, {X: -2}}, mode)
				for step := 0; step < 20; step++ {
					r.Step()
					expectFinite(r.Set())
				}
			})
		}
	})

	Describe("jacobi update", func() {
		pos := []r3.Vec{
			{X: 2},
			{X: 1.2, Y: 1.6},
			{Y: -2},
			{X: -1, Y: 1, Z: 1.4142135623730951},
		}

		It("computes every displacement from the pre-step positions", func() {
			f := physics.NewForce(0.5, radius, physics.Hard)
			w := []float64{1, 1, 1, 1}

			want := make([]r3.Vec, len(pos))
			for i := range pos {
				want[i] = r3.Add(pos[i], f.Displacement(pos, w, i, r3.Vec{}))
			}

			r := fixedRelaxer(pos, physics.Hard)
			Expect(r.Step()).To(BeZero())
			for i := range pos {
				Expect(r3.Norm(r3.Sub(r.Set().At(i).Pos, want[i]))).To(BeNumerically("<", 1e-12))
			}
		})

		It("does not depend on particle order", func() {
			perm := []int{2, 0, 3, 1}
			shuffled := make([]r3.Vec, len(pos))
			for i, j := range perm {
				shuffled[i] = pos[j]
			}

			a := fixedRelaxer(pos, physics.Soft)
			b := fixedRelaxer(shuffled, physics.Soft)
			for step := 0; step < 5; step++ {
				a.Step()
				b.Step()
			}

			for i, j := range perm {
				Expect(r3.Norm(r3.Sub(b.Set().At(i).Pos, a.Set().At(j).Pos))).To(BeNumerically("<", 1e-12))
			}
		})

		It("gives identical output with parallel workers", func() {
			sched := physics.NewSchedule(5, 0.01, 0.0003)
			serial := randomRelaxer(40, 99, physics.Hard, sched)
			parallel := randomRelaxer(40, 99, physics.Hard, sched)
			parallel.SetWorkers(4)

			for step := 0; step < 50; step++ {
				Expect(parallel.Step()).To(Equal(serial.Step()))
			}
			Expect(parallel.Set().Positions()).To(Equal(serial.Set().Positions()))
		})
	})

	Describe("soft confinement", func() {
		It("lets particles populate the ball near the target radius", func() {
			rng := rand.New(rand.NewSource(4))
			set, err := dynamo.NewSet(60, radius, dynamo.ConstantWeight(1), rng)
			Expect(err).NotTo(HaveOccurred())
			f := physics.NewForce(0.05, radius, physics.Soft)
			f.Restore = 1
			r := sim.NewRelaxer(set, f, physics.NewSchedule(0.5, 0.01, 0.0003), rng)

			for step := 0; step < 500; step++ {
				r.Step()
			}
			expectFinite(r.Set())
			for i := 0; i < set.Len(); i++ {
				Expect(r3.Norm(set.At(i).Pos)).To(BeNumerically("<", 3*radius))
			}
		})
	})

	It("advances the iteration count and reports the scheduled temperature", func() {
		sched := physics.NewSchedule(5, 0.01, 0.0003)
		r := randomRelaxer(3, 1, physics.Hard, sched)
		for i := 0; i < 10; i++ {
			Expect(r.Step()).To(Equal(sched.Temperature(i)))
		}
		Expect(r.Iteration()).To(Equal(10))
		Expect(r.Snapshot().Step).To(Equal(10))
		Expect(r.Snapshot().Temperature).To(Equal(sched.Temperature(9)))
	})

	It("converges for 12 particles under hard confinement", func() {
		sched := physics.NewSchedule(5, 0.01, 0.0003)
		Expect(sched.Cutoff()).To(BeNumerically("<=", 5000))

		r := randomRelaxer(12, 2024, physics.Hard, sched)
		tail := make([]float64, 0, 100)
		for step := 0; step < 10000; step++ {
			r.Step()
			if step >= 9900 {
				tail = append(tail, r.Set().MinDistance())
			}
		}

		lo, hi := tail[0], tail[0]
		for _, d := range tail {
			lo = math.Min(lo, d)
			hi = math.Max(hi, d)
		}
		Expect(lo).To(BeNumerically(">", 0))
		Expect((hi - lo) / lo).To(BeNumerically("<", 0.01))
	})
})
