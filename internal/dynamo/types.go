package dynamo

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r3"
)

type Particle struct {
	Pos    r3.Vec
	Weight float64
}

// Radius scales base by the cube root of the particle weight.
func (p Particle) Radius(base float64) float64 {
	return base * math.Cbrt(p.Weight)
}

// WeightDist produces particle weights at construction time.
type WeightDist interface {
	Sample(rng *rand.Rand) float64
	Min() float64
	String() string
}

type ConstantWeight float64

func (w ConstantWeight) Sample(*rand.Rand) float64 { return float64(w) }
func (w ConstantWeight) Min() float64             { return float64(w) }
func (w ConstantWeight) String() string           { return fmt.Sprintf("constant(%g)", float64(w)) }

// UniformWeight draws weights uniformly from [Lo, Hi).
type UniformWeight struct {
	Lo, Hi float64
}

func (w UniformWeight) Sample(rng *rand.Rand) float64 {
	return w.Lo + rng.Float64()*(w.Hi-w.Lo)
}
func (w UniformWeight) Min() float64   { return w.Lo }
func (w UniformWeight) String() string { return fmt.Sprintf("uniform(%g,%g)", w.Lo, w.Hi) }

// Set is an ordered, fixed-size collection of particles.
type Set struct {
	particles []Particle
}

// NewSet places count particles at random directions on the sphere of the
// given radius. Directions come from a uniform draw in [-0.5,0.5]^3 that is
// then normalized, so the angular distribution is not uniform; relaxation
// removes the bias.
func NewSet(count int, radius float64, weights WeightDist, rng *rand.Rand) (*Set, error) {
	if count <= 0 {
		return nil, invalid("count", count, "must be positive")
	}
	if radius <= 0 || math.IsNaN(radius) || math.IsInf(radius, 0) {
		return nil, invalid("radius", radius, "must be a positive finite number")
	}
	if weights == nil {
		weights = ConstantWeight(1)
	}

	particles := make([]Particle, count)
	for i := range particles {
		dir := CubeSample(rng)
		for r3.Norm2(dir) == 0 {
			dir = CubeSample(rng)
		}
		w := weights.Sample(rng)
		if !(w > 0) || math.IsInf(w, 0) {
			return nil, invalid("weight", w, "must be positive")
		}
		particles[i] = Particle{
			Pos:    r3.Scale(radius/r3.Norm(dir), dir),
			Weight: w,
		}
	}
	return &Set{particles: particles}, nil
}

// FromParticles builds a set from explicit particles, copying the slice.
func FromParticles(ps []Particle) (*Set, error) {
	if len(ps) == 0 {
		return nil, invalid("count", 0, "must be positive")
	}
	particles := make([]Particle, len(ps))
	for i, p := range ps {
		if !(p.Weight > 0) || math.IsInf(p.Weight, 0) {
			return nil, invalid(fmt.Sprintf("particles[%d].weight", i), p.Weight, "must be positive")
		}
		particles[i] = p
	}
	return &Set{particles: particles}, nil
}

// CubeSample returns a uniformly random vector in [-0.5,0.5]^3.
func CubeSample(rng *rand.Rand) r3.Vec {
	return r3.Vec{X: rng.Float64() - 0.5, Y: rng.Float64() - 0.5, Z: rng.Float64() - 0.5}
}

func (s *Set) Len() int             { return len(s.particles) }
func (s *Set) At(i int) Particle    { return s.particles[i] }
func (s *Set) Move(i int, d r3.Vec) { s.particles[i].Pos = r3.Add(s.particles[i].Pos, d) }

func (s *Set) Positions() []r3.Vec {
	out := make([]r3.Vec, len(s.particles))
	for i, p := range s.particles {
		out[i] = p.Pos
	}
	return out
}

// CopyPositions fills dst with the current positions and returns it,
// allocating only when dst is too short.
func (s *Set) CopyPositions(dst []r3.Vec) []r3.Vec {
	if cap(dst) < len(s.particles) {
		dst = make([]r3.Vec, len(s.particles))
	}
	dst = dst[:len(s.particles)]
	for i, p := range s.particles {
		dst[i] = p.Pos
	}
	return dst
}

func (s *Set) Weights() []float64 {
	out := make([]float64, len(s.particles))
	for i, p := range s.particles {
		out[i] = p.Weight
	}
	return out
}

func (s *Set) Clone() *Set {
	c := make([]Particle, len(s.particles))
	copy(c, s.particles)
	return &Set{particles: c}
}

func (s *Set) IsValid() bool {
	for _, p := range s.particles {
		if !finite(p.Pos) {
			return false
		}
	}
	return true
}

// MinDistance returns the smallest pairwise distance, or 0 for fewer than
// two particles.
func (s *Set) MinDistance() float64 {
	return MinDistance(s.Positions())
}

func (s *Set) Snapshot(step int, temperature float64) Snapshot {
	return Snapshot{
		Step:        step,
		Temperature: temperature,
		Positions:   s.Positions(),
		Weights:     s.Weights(),
	}
}

// Snapshot is a read-only view of a set after a committed step.
type Snapshot struct {
	Step        int
	Temperature float64
	Positions   []r3.Vec
	Weights     []float64
}

func (s Snapshot) Len() int { return len(s.Positions) }

func (s Snapshot) Particle(i int) Particle {
	w := 1.0
	if i < len(s.Weights) {
		w = s.Weights[i]
	}
	return Particle{Pos: s.Positions[i], Weight: w}
}

func (s Snapshot) Radii() []float64 {
	out := make([]float64, len(s.Positions))
	for i, p := range s.Positions {
		out[i] = r3.Norm(p)
	}
	return out
}

func MinDistance(pos []r3.Vec) float64 {
	if len(pos) < 2 {
		return 0
	}
	best := math.Inf(1)
	for i := range pos {
		for j := i + 1; j < len(pos); j++ {
			if d := r3.Norm(r3.Sub(pos[i], pos[j])); d < best {
				best = d
			}
		}
	}
	return best
}

func finite(v r3.Vec) bool {
	for _, c := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
