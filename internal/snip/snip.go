// Package snip implements SNIP background estimation for gamma spectra.
// The algorithm compresses the spectrum with a double-log square-root
// transform, iteratively clips each channel against the average of
// increasingly distant neighbors, then transforms back. Narrow peaks are
// erased while the slowly varying continuum survives.
package snip

import "math"

// DefaultIterations is the validated clipping-pass count. Fewer passes leave
// peak residue in the background, more erode real broad features.
const DefaultIterations = 24

// Result carries the estimated continuum and the peak signal left after
// subtracting it.
type Result struct {
	Background []float64 `json:"background"`
	NetCounts  []float64 `json:"net_counts"`
}

// Estimate returns the continuum background under counts. An iteration count
// below 1 falls back to DefaultIterations.
func Estimate(counts []float64, iterations int) []float64 {
	n := len(counts)
	if n == 0 {
		return nil
	}
	if iterations < 1 {
		iterations = DefaultIterations
	}

	// Variance-stabilizing transform suppresses peak amplitude relative to
	// the continuum while preserving its shape.
	v := make([]float64, n)
	for i, c := range counts {
		v[i] = math.Log(math.Log(math.Sqrt(c+1)+1) + 1)
	}

	// Clip against interpolation from neighbors p channels away. Early
	// passes remove narrow structure, later passes wider structure.
	for p := 1; p <= iterations; p++ {
		for i := p; i < n-p; i++ {
			mean := (v[i-p] + v[i+p]) / 2
			if mean < v[i] {
				v[i] = mean
			}
		}
	}

	background := make([]float64, n)
	for i := range v {
		b := math.Exp(math.Exp(v[i])-1) - 1
		b = b*b - 1
		if b < 0 {
			b = 0
		}
		background[i] = b
	}
	return background
}

// Subtract estimates the background and returns it together with the net
// counts. Net counts are clamped so no channel is ever negative or exceeds
// the raw input.
func Subtract(counts []float64, iterations int) Result {
	background := Estimate(counts, iterations)
	net := make([]float64, len(counts))
	for i := range counts {
		d := counts[i] - background[i]
		if d < 0 {
			d = 0
		}
		net[i] = d
	}
	return Result{Background: background, NetCounts: net}
}
