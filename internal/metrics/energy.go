package metrics

import (
	"github.com/san-kum/spherelax/internal/dynamo"
	"github.com/san-kum/spherelax/internal/physics"
)

// Energy reports a pair energy of the last observed snapshot.
type Energy struct {
	name    string
	fn      func(s dynamo.Snapshot) float64
	value   float64
	samples int
}

// NewLogEnergy tracks -Σ w_i w_j ln d_ij, the potential the repulsion
// descends.
func NewLogEnergy() *Energy {
	return &Energy{
		name: "log_energy",
		fn: func(s dynamo.Snapshot) float64 {
			return physics.LogEnergy(s.Positions, s.Weights)
		},
	}
}

// NewCoulombEnergy tracks Σ w_i w_j / d_ij, the classic Thomson energy.
func NewCoulombEnergy() *Energy {
	return &Energy{
		name: "coulomb_energy",
		fn: func(s dynamo.Snapshot) float64 {
			return physics.CoulombEnergy(s.Positions, s.Weights)
		},
	}
}

func (e *Energy) Name() string { return e.name }

func (e *Energy) Observe(s dynamo.Snapshot) {
	e.value = e.fn(s)
	e.samples++
}

func (e *Energy) Value() float64 { return e.value }

func (e *Energy) Reset() {
	e.value = 0
	e.samples = 0
}
