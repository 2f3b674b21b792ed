package seismic

import (
	"math"
	"testing"

	"github.com/san-kum/quakesim/internal/dynamo"
)

func TestZeroMagnitudeIsStill(t *testing.T) {
	m := DefaultModel()
	for _, tm := range []float64{0, 0.1, 1, 3.7, 100, -5} {
		if d := m.DisplacementAt(0, tm); d != (dynamo.Vec3{}) {
			t.Errorf("t=%f: expected zero displacement, got %v", tm, d)
		}
		if v := m.VelocityAt(0, tm); v != (dynamo.Vec3{}) {
			t.Errorf("t=%f: expected zero velocity, got %v", tm, v)
		}
	}
}

func TestAmplitudeMonotonic(t *testing.T) {
	m := DefaultModel()
	prev := -1.0
	for mag := 0.0; mag <= 9.0; mag += 0.05 {
		a := m.Amplitude(mag)
		if a < prev {
			t.Fatalf("amplitude decreased at magnitude %f: %f < %f", mag, a, prev)
		}
		prev = a
	}
	if got := m.Amplitude(9); math.Abs(got-DefaultCalibration) > 1e-12 {
		t.Errorf("expected amplitude %f at magnitude 9, got %f", DefaultCalibration, got)
	}
}

func TestFrequencyGrowsWithMagnitude(t *testing.T) {
	m := DefaultModel()
	if m.Frequency(0) != 12 {
		t.Errorf("expected base frequency 12, got %f", m.Frequency(0))
	}
	if m.Frequency(9) != 30 {
		t.Errorf("expected frequency 30 at magnitude 9, got %f", m.Frequency(9))
	}
}

func TestDisplacementDeterministic(t *testing.T) {
	m := DefaultModel()
	a := m.DisplacementAt(6.5, 1.234)
	b := m.DisplacementAt(6.5, 1.234)
	if a != b {
		t.Errorf("expected identical samples, got %v and %v", a, b)
	}
	if a.Y != 0 {
		t.Errorf("expected no vertical motion, got %f", a.Y)
	}
}

func TestDisplacementShape(t *testing.T) {
	m := DefaultModel()
	mag, tm := 9.0, 0.4
	amp := m.Amplitude(mag)
	w := m.Frequency(mag)

	d := m.DisplacementAt(mag, tm)
	if math.Abs(d.X-amp*math.Sin(tm*w)) > 1e-12 {
		t.Errorf("unexpected x displacement %f", d.X)
	}
	if math.Abs(d.Z-amp*math.Cos(tm*w*1.1)) > 1e-12 {
		t.Errorf("unexpected z displacement %f", d.Z)
	}
}

func TestVelocityMatchesFiniteDifference(t *testing.T) {
	m := DefaultModel()
	mag, tm, h := 7.0, 0.8, 1e-6

	fd := m.DisplacementAt(mag, tm+h).Sub(m.DisplacementAt(mag, tm-h)).Scale(1 / (2 * h))
	v := m.VelocityAt(mag, tm)
	if fd.Sub(v).Len() > 1e-4 {
		t.Errorf("velocity %v does not match finite difference %v", v, fd)
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{-1, 0},
		{0, 0},
		{4.5, 4.5},
		{9, 9},
		{12, 9},
		{math.NaN(), 0},
	}
	for _, tt := range tests {
		if got := Clamp(tt.in); got != tt.want {
			t.Errorf("Clamp(%f) = %f, want %f", tt.in, got, tt.want)
		}
	}
}
