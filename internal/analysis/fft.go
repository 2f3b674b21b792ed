package analysis

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// Spectrum pairs each frequency bin in Hz with its magnitude.
type Spectrum struct {
	Freqs []float64
	Power []float64
}

// PowerSpectrum returns the one-sided spectrum of samples taken every dt
// seconds. The mean is removed and a Hann window applied first.
func PowerSpectrum(samples []float64, dt float64) Spectrum {
	n := len(samples)
	if n < 2 || dt <= 0 {
		return Spectrum{Freqs: []float64{}, Power: []float64{}}
	}

	mean := 0.0
	for _, v := range samples {
		mean += v
	}
	mean /= float64(n)

	buf := make([]complex128, n)
	for i, v := range samples {
		window := 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
		buf[i] = complex((v-mean)*window, 0)
	}
	out := fft.FFT(buf)

	bins := n/2 + 1
	s := Spectrum{Freqs: make([]float64, bins), Power: make([]float64, bins)}
	res := 1 / (float64(n) * dt)
	for i := 0; i < bins; i++ {
		s.Freqs[i] = float64(i) * res
		s.Power[i] = cmplx.Abs(out[i])
	}
	return s
}

// DominantFrequency is the frequency in Hz of the strongest bin above DC.
// It returns 0 for traces too short or too flat to tell.
func DominantFrequency(samples []float64, dt float64) float64 {
	s := PowerSpectrum(samples, dt)
	best, peak := 0, 0.0
	for i := 1; i < len(s.Power); i++ {
		if s.Power[i] > peak {
			best, peak = i, s.Power[i]
		}
	}
	if peak < 1e-12 {
		return 0
	}
	return s.Freqs[best]
}

func RMS(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range samples {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}
