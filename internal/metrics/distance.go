package metrics

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/spherelax/internal/dynamo"
	"github.com/san-kum/spherelax/internal/sim"
)

type MinDistance struct {
	value float64
	best  float64
}

func NewMinDistance() *MinDistance {
	return &MinDistance{}
}

func (m *MinDistance) Name() string { return "min_distance" }

func (m *MinDistance) Observe(s dynamo.Snapshot) {
	m.value = dynamo.MinDistance(s.Positions)
	m.best = math.Max(m.best, m.value)
}

// Value is the minimum pair distance of the last snapshot.
func (m *MinDistance) Value() float64 { return m.value }

// Best is the largest minimum distance seen during the run.
func (m *MinDistance) Best() float64 { return m.best }

func (m *MinDistance) Reset() {
	m.value = 0
	m.best = 0
}

// RadiusSpread is the standard deviation of particle distances from the
// origin. It is zero for a hard-confined set.
type RadiusSpread struct {
	mean, std float64
}

func NewRadiusSpread() *RadiusSpread {
	return &RadiusSpread{}
}

func (r *RadiusSpread) Name() string { return "radius_spread" }

func (r *RadiusSpread) Observe(s dynamo.Snapshot) {
	radii := s.Radii()
	if len(radii) < 2 {
		r.mean, r.std = stat.Mean(radii, nil), 0
		return
	}
	r.mean, r.std = stat.MeanStdDev(radii, nil)
}

func (r *RadiusSpread) Value() float64 { return r.std }
func (r *RadiusSpread) Mean() float64  { return r.mean }

func (r *RadiusSpread) Reset() {
	r.mean, r.std = 0, 0
}

// Nearest returns, for every particle, the distance to its nearest
// neighbour.
func Nearest(pos []r3.Vec) []float64 {
	out := make([]float64, len(pos))
	for i := range pos {
		best := math.Inf(1)
		for j := range pos {
			if i == j {
				continue
			}
			if d := r3.Norm(r3.Sub(pos[i], pos[j])); d < best {
				best = d
			}
		}
		if math.IsInf(best, 1) {
			best = 0
		}
		out[i] = best
	}
	return out
}

// Uniformity is the coefficient of variation of nearest-neighbour distances.
// Lower values mean a more even distribution.
type Uniformity struct {
	value float64
}

func NewUniformity() *Uniformity { return &Uniformity{} }

func (u *Uniformity) Name() string { return "nn_variation" }

func (u *Uniformity) Observe(s dynamo.Snapshot) {
	nn := Nearest(s.Positions)
	if len(nn) < 2 {
		u.value = 0
		return
	}
	mean, std := stat.MeanStdDev(nn, nil)
	if mean == 0 {
		u.value = 0
		return
	}
	u.value = std / mean
}

func (u *Uniformity) Value() float64 { return u.value }
func (u *Uniformity) Reset()         { u.value = 0 }

// Defaults returns the metrics attached to every run.
func Defaults() []sim.Metric {
	return []sim.Metric{
		NewMinDistance(),
		NewLogEnergy(),
		NewCoulombEnergy(),
		NewRadiusSpread(),
		NewUniformity(),
	}
}
