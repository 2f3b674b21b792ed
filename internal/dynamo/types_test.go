package dynamo

import (
	"math"
	"testing"
)

func TestVec3_IsValid(t *testing.T) {
	tests := []struct {
		name  string
		v     Vec3
		valid bool
	}{
		{"zero", Vec3{}, true},
		{"normal", Vec3{1, 2, 3}, true},
		{"with NaN", Vec3{1, math.NaN(), 0}, false},
		{"with +Inf", Vec3{math.Inf(1), 0, 0}, false},
		{"with -Inf", Vec3{0, 0, math.Inf(-1)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.IsValid(); got != tt.valid {
				t.Errorf("IsValid() = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestVec3_Arithmetic(t *testing.T) {
	a := Vec3{1, 2, 3}
	b := Vec3{4, 5, 6}

	if got := a.Add(b); got != (Vec3{5, 7, 9}) {
		t.Errorf("Add failed: got %v", got)
	}
	if got := b.Sub(a); got != (Vec3{3, 3, 3}) {
		t.Errorf("Sub failed: got %v", got)
	}
	if got := a.Scale(2); got != (Vec3{2, 4, 6}) {
		t.Errorf("Scale failed: got %v", got)
	}
	if got := a.Dot(b); got != 32 {
		t.Errorf("Dot failed: got %v", got)
	}
	if got := UnitX.Cross(UnitY); got != UnitZ {
		t.Errorf("Cross failed: got %v", got)
	}
	if got := (Vec3{3, 10, 4}).Horizontal(); math.Abs(got-5) > 1e-12 {
		t.Errorf("Horizontal failed: got %v", got)
	}
}

func TestQuat_Rotate(t *testing.T) {
	q := QuatFromAxisAngle(UnitY, math.Pi/2)
	got := q.Rotate(UnitX)
	want := Vec3{0, 0, -1}

	if got.Sub(want).Len() > 1e-9 {
		t.Errorf("Rotate(UnitX) = %v, want %v", got, want)
	}

	m := q.Mat3()
	if m.MulVec(UnitX).Sub(want).Len() > 1e-9 {
		t.Errorf("Mat3 disagrees with Rotate: %v", m.MulVec(UnitX))
	}
}

func TestQuat_Integrate(t *testing.T) {
	q := IdentityQuat
	w := Vec3{0, 1, 0}
	dt := 0.001

	for i := 0; i < 1000; i++ {
		q = q.Integrate(w, dt)
	}

	want := QuatFromAxisAngle(UnitY, 1.0)
	got := q.Rotate(UnitX)
	if got.Sub(want.Rotate(UnitX)).Len() > 1e-3 {
		t.Errorf("integrated rotation %v, expected %v", got, want.Rotate(UnitX))
	}
}

func TestQuat_Tilt(t *testing.T) {
	if tilt := IdentityQuat.Tilt(); tilt != 0 {
		t.Errorf("expected zero tilt, got %f", tilt)
	}

	q := QuatFromAxisAngle(UnitZ, math.Pi/2)
	if tilt := q.Tilt(); math.Abs(tilt-math.Pi/2) > 1e-9 {
		t.Errorf("expected tilt pi/2, got %f", tilt)
	}
}

func TestMat3_Transpose(t *testing.T) {
	m := Mat3{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}}
	tr := m.Transpose()
	if tr[0][1] != 4 || tr[2][0] != 3 {
		t.Errorf("Transpose failed: got %v", tr)
	}

	id := Diag(1, 1, 1)
	if m.Mul(id) != m {
		t.Errorf("multiplying by identity changed matrix: %v", m.Mul(id))
	}
}

func TestSimulationError(t *testing.T) {
	err := &SimulationError{Time: 1.5, Step: 150, Wrapped: ErrInvalidState}
	expected := "step 150 (t=1.5000): dynamo: invalid state (NaN or Inf detected)"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}
