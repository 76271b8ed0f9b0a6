package track

import (
	"math"
	"testing"
)

func TestVec3_CrossOrthogonality(t *testing.T) {
	a := Vec3{X: 1, Y: 2, Z: 3}
	b := Vec3{X: -4, Y: 0.5, Z: 2}

	c := a.Cross(b)
	if math.Abs(c.Dot(a)) > tolerance || math.Abs(c.Dot(b)) > tolerance {
		t.Errorf("cross product %+v not orthogonal to inputs", c)
	}
}

func TestVec3_CrossHandedness(t *testing.T) {
	x := Vec3{X: 1}
	y := Vec3{Y: 1}

	z := x.Cross(y)
	if z != (Vec3{Z: 1}) {
		t.Errorf("x × y = %+v, want (0,0,1)", z)
	}
}

func TestVec3_NormalizeZeroVector(t *testing.T) {
	z := Vec3{}
	if z.Normalize() != (Vec3{}) {
		t.Errorf("Normalize(zero) = %+v, want zero", z.Normalize())
	}
}

func TestVec3_RotateAroundPreservesNorm(t *testing.T) {
	v := Vec3{X: 3, Y: -1, Z: 2}
	axis := Vec3{X: 1, Y: 1, Z: 1}.Normalize()

	for _, angle := range []float64{0, 0.1, math.Pi / 4, math.Pi / 2, math.Pi, 2 * math.Pi} {
		r := v.RotateAround(axis, angle)
		if d := math.Abs(r.Norm() - v.Norm()); d > 1e-9 {
			t.Errorf("rotation by %v changed norm by %v", angle, d)
		}
	}
}

func TestVec3_RotateAroundQuarterTurn(t *testing.T) {
	// Rotating +X a quarter turn around +Z lands on +Y.
	r := Vec3{X: 1}.RotateAround(Vec3{Z: 1}, math.Pi/2)
	if r.Sub(Vec3{Y: 1}).Norm() > 1e-9 {
		t.Errorf("quarter turn of +X around +Z = %+v, want (0,1,0)", r)
	}
}

func TestVec3_IsFinite(t *testing.T) {
	if !(Vec3{X: 1, Y: 2, Z: 3}).IsFinite() {
		t.Error("finite vector reported non-finite")
	}
	if (Vec3{X: math.NaN()}).IsFinite() {
		t.Error("NaN component reported finite")
	}
	if (Vec3{Z: math.Inf(1)}).IsFinite() {
		t.Error("Inf component reported finite")
	}
}
