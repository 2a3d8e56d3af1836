package physics

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func finiteVec(v r3.Vec) bool {
	for _, c := range []float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

func TestKickZeroTemperature(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	before := rng.Int63()

	rng = rand.New(rand.NewSource(1))
	if k := Kick(rng, 0); k != (r3.Vec{}) {
		t.Errorf("Kick at T=0 = %v, want zero vector", k)
	}
	if after := rng.Int63(); after != before {
		t.Error("Kick at T=0 consumed randomness")
	}
}

func TestKickBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 1000; i++ {
		k := Kick(rng, 2)
		for _, c := range []float64{k.X, k.Y, k.Z} {
			if c < -1 || c > 1 {
				t.Fatalf("kick component %v outside [-1,1] at T=2", c)
			}
		}
	}
}

func TestDisplacementAntipodalFixedPoint(t *testing.T) {
	f := NewForce(0.5, 2, Hard)
	pos := []r3.Vec{{Z: 2}, {Z: -2}}
	w := []float64{1, 1}

	for i := range pos {
		d := f.Displacement(pos, w, i, r3.Vec{})
		if r3.Norm(d) > 1e-12 {
			t.Errorf("particle %d moved by %v, want fixed point", i, d)
		}
	}

	// soft mode: repulsion is radial, along the connecting line
	soft := NewForce(0.5, 2, Soft)
	d := soft.Displacement(pos, w, 0, r3.Vec{})
	if math.Abs(d.X) > 1e-15 || math.Abs(d.Y) > 1e-15 {
		t.Errorf("soft displacement %v has off-axis component", d)
	}
}

func TestDisplacementRepulsion(t *testing.T) {
	f := NewForce(0.5, 1, Soft)
	f.Restore = 0
	pos := []r3.Vec{{X: 1}, {X: -1}}

	d := f.Displacement(pos, []float64{1, 1}, 0, r3.Vec{})
	// 0.5 * (2,0,0) / 4
	if math.Abs(d.X-0.25) > 1e-12 || d.Y != 0 || d.Z != 0 {
		t.Errorf("Displacement = %v, want (0.25,0,0)", d)
	}

	heavy := f.Displacement(pos, []float64{1, 3}, 0, r3.Vec{})
	if math.Abs(heavy.X-0.75) > 1e-12 {
		t.Errorf("weighted Displacement.X = %v, want 0.75", heavy.X)
	}
}

func TestDisplacementCoincidentPair(t *testing.T) {
	pos := []r3.Vec{{X: 1, Y: 1}, {X: 1, Y: 1}}
	w := []float64{1, 1}

	for _, mode := range []Confinement{Hard, Soft} {
		f := NewForce(0.5, 2, mode)
		for i := range pos {
			d := f.Displacement(pos, w, i, r3.Vec{})
			if !finiteVec(d) {
				t.Errorf("%s: particle %d displacement %v not finite", mode, i, d)
			}
		}
	}
}

func TestDisplacementOriginParticle(t *testing.T) {
	pos := []r3.Vec{{}, {}}
	w := []float64{1, 1}

	hard := NewForce(0.5, 2, Hard)
	d := hard.Displacement(pos, w, 0, r3.Vec{})
	if !finiteVec(d) {
		t.Fatalf("hard displacement %v not finite", d)
	}
	if got := r3.Norm(r3.Add(pos[0], d)); math.Abs(got-2) > 1e-12 {
		t.Errorf("projected radius = %v, want 2", got)
	}

	soft := NewForce(0.5, 2, Soft)
	if d := soft.Displacement(pos, w, 0, r3.Vec{}); d != (r3.Vec{}) {
		t.Errorf("soft displacement at origin = %v, want zero", d)
	}
}

func TestDisplacementSingleParticle(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	f := NewForce(0.5, 2, Hard)
	pos := []r3.Vec{{X: 2}}

	for i := 0; i < 100; i++ {
		d := f.Displacement(pos, []float64{1}, 0, Kick(rng, 1))
		pos[0] = r3.Add(pos[0], d)
		if r := r3.Norm(pos[0]); math.Abs(r-2) > 1e-9 {
			t.Fatalf("step %d: radius %v, want 2", i, r)
		}
	}
}

func TestSoftRestoringDirection(t *testing.T) {
	f := NewForce(0, 2, Soft)
	f.Restore = 0.5

	inside := f.Displacement([]r3.Vec{{Y: 1}}, []float64{1}, 0, r3.Vec{})
	if inside.Y <= 0 {
		t.Errorf("particle inside the sphere pulled inward: %v", inside)
	}
	if math.Abs(inside.Y-0.5) > 1e-12 {
		t.Errorf("restoring displacement = %v, want 0.5", inside.Y)
	}

	outside := f.Displacement([]r3.Vec{{Y: 3}}, []float64{1}, 0, r3.Vec{})
	if outside.Y >= 0 {
		t.Errorf("particle outside the sphere pushed outward: %v", outside)
	}
}

func TestParseConfinement(t *testing.T) {
	tests := []struct {
		in      string
		want    Confinement
		wantErr bool
	}{
		{"hard", Hard, false},
		{"surface", Hard, false},
		{"soft", Soft, false},
		{"volume", Soft, false},
		{"sticky", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseConfinement(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseConfinement(%q) error = %v", tt.in, err)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseConfinement(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
