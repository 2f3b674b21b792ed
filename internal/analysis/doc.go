// Package analysis inspects recorded floor and body traces in the frequency
// domain.
//
//   - [PowerSpectrum]: one-sided magnitude spectrum of a Hann-windowed trace
//   - [DominantFrequency]: strongest non-DC frequency in Hz
//   - [RMS]: root mean square of a trace
//
// # Example
//
// Checking that a recorded floor trace shakes at the modelled rate:
//
//	hz := analysis.DominantFrequency(res.Floor(), cfg.Dt)
//	want := model.Frequency(cfg.Magnitude) / (2 * math.Pi)
package analysis
