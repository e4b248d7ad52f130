// Package spectrum defines the canonical channel/count input consumed by the
// analysis pipeline. A Spectrum is created once per acquisition or upload and
// is immutable afterwards, which keeps concurrent analyses free of shared
// mutable state.
package spectrum

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"

	"github.com/tkarvo/gammalyze/internal/errors"
)

// Calibration is a linear channel-to-energy mapping in keV.
type Calibration struct {
	Slope     float64 `json:"slope"`     // keV per channel, must be positive
	Intercept float64 `json:"intercept"` // keV at channel zero
}

// Energy returns the energy of a channel index in keV.
func (c Calibration) Energy(channel int) float64 {
	return c.Slope*float64(channel) + c.Intercept
}

// Channel returns the channel index closest to an energy.
func (c Calibration) Channel(energyKeV float64) int {
	return int(math.Round((energyKeV - c.Intercept) / c.Slope))
}

// Validate rejects calibrations that do not map channels to monotonically
// increasing energies.
func (c Calibration) Validate() error {
	if c.Slope <= 0 || math.IsNaN(c.Slope) || math.IsInf(c.Slope, 0) {
		return errors.Newf("calibration slope must be positive and finite, got %g", c.Slope).
			Component("spectrum").
			Category(errors.CategoryValidation).
			Build()
	}
	if math.IsNaN(c.Intercept) || math.IsInf(c.Intercept, 0) {
		return errors.Newf("calibration intercept must be finite, got %g", c.Intercept).
			Component("spectrum").
			Category(errors.CategoryValidation).
			Build()
	}
	return nil
}

// Spectrum is a fixed-length sequence of non-negative channel counts plus the
// calibration that maps channel index to energy.
type Spectrum struct {
	Counts      []int
	Calibration Calibration

	originalLen int
}

// New validates raw counts and builds a Spectrum of exactly channels entries.
// Shorter inputs are zero-padded and longer inputs truncated; both are
// documented recovery behaviors, visible through Resized. Negative counts are
// a hard validation error.
func New(counts []int, cal Calibration, channels int) (*Spectrum, error) {
	if err := cal.Validate(); err != nil {
		return nil, err
	}
	if channels <= 0 {
		return nil, errors.Newf("channel count must be positive, got %d", channels).
			Component("spectrum").
			Category(errors.CategoryValidation).
			Build()
	}
	for i, c := range counts {
		if c < 0 {
			return nil, errors.Newf("negative count %d at channel %d", c, i).
				Component("spectrum").
				Category(errors.CategoryValidation).
				Context("channel", i).
				Build()
		}
	}

	fixed := make([]int, channels)
	copy(fixed, counts)

	return &Spectrum{
		Counts:      fixed,
		Calibration: cal,
		originalLen: len(counts),
	}, nil
}

// Channels returns the fixed channel count.
func (s *Spectrum) Channels() int {
	return len(s.Counts)
}

// Resized reports whether the input was padded or truncated to fit the
// configured channel count.
func (s *Spectrum) Resized() bool {
	return s.originalLen != len(s.Counts)
}

// OriginalLen returns the channel count of the raw input before resizing.
func (s *Spectrum) OriginalLen() int {
	return s.originalLen
}

// Energies returns the energy of every channel in keV.
func (s *Spectrum) Energies() []float64 {
	out := make([]float64, len(s.Counts))
	for i := range out {
		out[i] = s.Calibration.Energy(i)
	}
	return out
}

// CountsFloat returns the counts widened to float64 for the numeric pipeline.
func (s *Spectrum) CountsFloat() []float64 {
	out := make([]float64, len(s.Counts))
	for i, c := range s.Counts {
		out[i] = float64(c)
	}
	return out
}

// MaxCount returns the highest channel count.
func (s *Spectrum) MaxCount() int {
	maxCount := 0
	for _, c := range s.Counts {
		if c > maxCount {
			maxCount = c
		}
	}
	return maxCount
}

// TotalCounts returns the integral of the spectrum.
func (s *Spectrum) TotalCounts() int64 {
	var total int64
	for _, c := range s.Counts {
		total += int64(c)
	}
	return total
}

// Digest returns a stable SHA-256 digest of counts and calibration, used as
// the memoization key for analysis results.
func (s *Spectrum) Digest() string {
	h := sha256.New()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(s.Calibration.Slope))
	h.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(s.Calibration.Intercept))
	h.Write(buf[:])
	for _, c := range s.Counts {
		binary.LittleEndian.PutUint64(buf[:], uint64(c))
		h.Write(buf[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}
