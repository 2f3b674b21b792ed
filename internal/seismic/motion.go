// Package seismic converts a scalar magnitude into the kinematic displacement
// of the room floor.
package seismic

import (
	"math"

	"github.com/san-kum/quakesim/internal/dynamo"
)

const (
	MinMagnitude = 0.0
	MaxMagnitude = 9.0

	DefaultBaseFrequency  = 12.0
	DefaultFrequencySlope = 2.0
	DefaultCalibration    = 0.18
	DefaultCrossAxisRatio = 1.1
)

// Model is a stateless ground-motion curve. The same (magnitude, t) always
// yields the same displacement.
type Model struct {
	BaseFrequency  float64 `yaml:"base_frequency"`
	FrequencySlope float64 `yaml:"frequency_slope"`
	Calibration    float64 `yaml:"calibration"`
	CrossAxisRatio float64 `yaml:"cross_axis_ratio"`
}

// Sample is one evaluation of the model.
type Sample struct {
	T            float64
	Displacement dynamo.Vec3
}

func DefaultModel() Model {
	return Model{
		BaseFrequency:  DefaultBaseFrequency,
		FrequencySlope: DefaultFrequencySlope,
		Calibration:    DefaultCalibration,
		CrossAxisRatio: DefaultCrossAxisRatio,
	}
}

// Clamp bounds a magnitude to [0, 9]. NaN maps to 0.
func Clamp(m float64) float64 {
	if math.IsNaN(m) || m < MinMagnitude {
		return MinMagnitude
	}
	if m > MaxMagnitude {
		return MaxMagnitude
	}
	return m
}

// Intensity is the cubic response (m/9)^3.
func (Model) Intensity(m float64) float64 {
	r := Clamp(m) / MaxMagnitude
	return r * r * r
}

func (md Model) Frequency(m float64) float64 {
	return md.BaseFrequency + Clamp(m)*md.FrequencySlope
}

func (md Model) Amplitude(m float64) float64 {
	return md.Intensity(m) * md.Calibration
}

// DisplacementAt returns the floor offset at time t. Vertical motion is
// always zero.
func (md Model) DisplacementAt(m, t float64) dynamo.Vec3 {
	amp := md.Amplitude(m)
	if amp == 0 {
		return dynamo.Vec3{}
	}
	w := md.Frequency(m)
	return dynamo.Vec3{
		X: amp * math.Sin(t*w),
		Z: amp * math.Cos(t*w*md.CrossAxisRatio),
	}
}

// VelocityAt is the time derivative of DisplacementAt.
func (md Model) VelocityAt(m, t float64) dynamo.Vec3 {
	amp := md.Amplitude(m)
	if amp == 0 {
		return dynamo.Vec3{}
	}
	w := md.Frequency(m)
	wz := w * md.CrossAxisRatio
	return dynamo.Vec3{
		X: amp * w * math.Cos(t*w),
		Z: -amp * wz * math.Sin(t*wz),
	}
}

func (md Model) Sample(m, t float64) Sample {
	return Sample{T: t, Displacement: md.DisplacementAt(m, t)}
}
