package physics

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// LogEnergy returns -Σ w_i w_j ln|x_i - x_j| over distinct pairs. Its
// negative gradient with respect to x_i is the repulsion term of
// Displacement. Coincident pairs are skipped.
func LogEnergy(pos []r3.Vec, weights []float64) float64 {
	e := 0.0
	forEachPair(pos, weights, func(d, w float64) {
		e -= w * math.Log(d)
	})
	return e
}

// CoulombEnergy returns Σ w_i w_j / |x_i - x_j| over distinct pairs.
func CoulombEnergy(pos []r3.Vec, weights []float64) float64 {
	e := 0.0
	forEachPair(pos, weights, func(d, w float64) {
		e += w / d
	})
	return e
}

func forEachPair(pos []r3.Vec, weights []float64, fn func(d, w float64)) {
	for i := range pos {
		for j := i + 1; j < len(pos); j++ {
			d := r3.Norm(r3.Sub(pos[i], pos[j]))
			if d == 0 {
				continue
			}
			fn(d, weightAt(weights, i)*weightAt(weights, j))
		}
	}
}

func weightAt(w []float64, i int) float64 {
	if i < len(w) {
		return w[i]
	}
	return 1
}
