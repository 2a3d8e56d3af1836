package physics

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/spherelax/internal/dynamo"
)

// Confinement selects how particles are held to the target sphere.
type Confinement int

const (
	// Hard rescales every updated position onto the sphere.
	Hard Confinement = iota
	// Soft pulls particles toward the sphere with a restoring force.
	Soft
)

func (c Confinement) String() string {
	switch c {
	case Hard:
		return "hard"
	case Soft:
		return "soft"
	default:
		return fmt.Sprintf("confinement(%d)", int(c))
	}
}

func ParseConfinement(s string) (Confinement, error) {
	switch s {
	case "hard", "surface":
		return Hard, nil
	case "soft", "volume":
		return Soft, nil
	default:
		return 0, &dynamo.ConfigError{Field: "force.confinement", Value: s, Reason: "want hard or soft"}
	}
}

// Force computes per-particle displacements from pairwise inverse-square
// repulsion plus a confinement term.
type Force struct {
	Repulsion float64
	Restore   float64
	Radius    float64
	Mode      Confinement
}

func NewForce(repulsion, radius float64, mode Confinement) *Force {
	return &Force{
		Repulsion: repulsion,
		Restore:   0.5,
		Radius:    radius,
		Mode:      mode,
	}
}

func (f *Force) Validate() error {
	if !(f.Radius > 0) || math.IsInf(f.Radius, 0) {
		return &dynamo.ConfigError{Field: "particles.radius", Value: f.Radius, Reason: "must be positive"}
	}
	if f.Repulsion < 0 || math.IsNaN(f.Repulsion) {
		return &dynamo.ConfigError{Field: "force.repulsion", Value: f.Repulsion, Reason: "must not be negative"}
	}
	if f.Mode == Soft && (f.Restore < 0 || math.IsNaN(f.Restore)) {
		return &dynamo.ConfigError{Field: "force.restore", Value: f.Restore, Reason: "must not be negative"}
	}
	if f.Mode != Hard && f.Mode != Soft {
		return &dynamo.ConfigError{Field: "force.confinement", Value: f.Mode, Reason: "unknown mode"}
	}
	return nil
}

// Kick returns the Brownian perturbation for one particle at temperature t.
// At t == 0 it is the zero vector and no randomness is consumed.
func Kick(rng *rand.Rand, t float64) r3.Vec {
	if t == 0 {
		return r3.Vec{}
	}
	return r3.Scale(t, dynamo.CubeSample(rng))
}

// Displacement returns the net move for particle i given the positions and
// weights of the whole set before the step. Coincident pairs contribute
// nothing.
func (f *Force) Displacement(pos []r3.Vec, weights []float64, i int, kick r3.Vec) r3.Vec {
	xi := pos[i]
	delta := kick

	for j, xj := range pos {
		if j == i {
			continue
		}
		diff := r3.Sub(xi, xj)
		d2 := r3.Norm2(diff)
		if d2 == 0 {
			continue
		}
		delta = r3.Add(delta, r3.Scale(f.Repulsion*weights[j]/d2, diff))
	}

	switch f.Mode {
	case Hard:
		return r3.Sub(f.project(r3.Add(xi, delta), xi), xi)
	case Soft:
		if n := r3.Norm(xi); n > 0 {
			delta = r3.Add(delta, r3.Scale(f.Restore*(f.Radius-n)/n, xi))
		}
	}
	return delta
}

// project rescales p onto the target sphere. A zero p falls back to the
// direction of prev, then to +Z.
func (f *Force) project(p, prev r3.Vec) r3.Vec {
	n := r3.Norm(p)
	if n == 0 {
		p, n = prev, r3.Norm(prev)
		if n == 0 {
			return r3.Vec{Z: f.Radius}
		}
	}
	return r3.Scale(f.Radius/n, p)
}

// Confine applies the hard constraint to a single position. Soft mode
// returns p unchanged.
func (f *Force) Confine(p r3.Vec) r3.Vec {
	if f.Mode != Hard {
		return p
	}
	return f.project(p, r3.Vec{})
}
