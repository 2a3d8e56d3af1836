package physics

import (
	"math"

	"github.com/san-kum/spherelax/internal/dynamo"
)

// Schedule maps an iteration count to an annealing temperature
// Base·exp(-Decay·i), cut to exactly zero once it falls below Floor.
type Schedule struct {
	Base  float64
	Decay float64
	Floor float64
}

func NewSchedule(base, decay, floor float64) Schedule {
	return Schedule{Base: base, Decay: decay, Floor: floor}
}

func (s Schedule) Temperature(i int) float64 {
	t := s.Base * math.Exp(-s.Decay*float64(i))
	if t < s.Floor || t == 0 {
		return 0
	}
	return t
}

// Cutoff returns the first iteration with zero temperature. Without a floor
// that is where Base·exp(-Decay·i) underflows to zero. It returns -1 when
// the temperature never reaches zero, which happens only without decay.
func (s Schedule) Cutoff() int {
	if s.Temperature(0) == 0 {
		return 0
	}
	if !(s.Decay > 0) {
		return -1
	}
	floor := s.Floor
	if !(floor > 0) {
		floor = math.SmallestNonzeroFloat64
	}
	est := (math.Log(s.Base) - math.Log(floor)) / s.Decay
	if est >= maxCutoff {
		return -1
	}
	i := max(int(est), 0)
	// the closed form can be off by one either way after rounding
	for i > 0 && s.Temperature(i-1) == 0 {
		i--
	}
	for s.Temperature(i) != 0 {
		i++
	}
	return i
}

// maxCutoff bounds the iterations Cutoff will report; beyond it the
// schedule is treated as never cooling.
const maxCutoff = 1 << 53

func (s Schedule) Validate() error {
	if s.Base < 0 || math.IsNaN(s.Base) || math.IsInf(s.Base, 0) {
		return &dynamo.ConfigError{Field: "schedule.base", Value: s.Base, Reason: "must be a finite non-negative number"}
	}
	if s.Decay < 0 || math.IsNaN(s.Decay) {
		return &dynamo.ConfigError{Field: "schedule.decay", Value: s.Decay, Reason: "must not be negative"}
	}
	if s.Floor < 0 || math.IsNaN(s.Floor) {
		return &dynamo.ConfigError{Field: "schedule.floor", Value: s.Floor, Reason: "must not be negative"}
	}
	return nil
}
