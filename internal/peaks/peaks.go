// Package peaks finds statistically significant local maxima in a spectrum
// using topographic prominence. Thresholds are adaptive: they scale with the
// spectrum's own maximum, because absolute thresholds cannot cover the
// dynamic range between strong and weak sources.
package peaks

import "sort"

// Defaults applied by New for zero-valued config fields.
const (
	DefaultProminenceFactor = 0.05
	DefaultHeightFactor     = 0.1
	DefaultDistance         = 5
	DefaultMaxPeaks         = 20

	// Absolute floor of the height threshold. Keeps a tall spike detectable
	// in an otherwise empty spectrum where the relative threshold is tiny.
	heightFloor = 5.0
)

// Config holds the detection thresholds.
type Config struct {
	ProminenceFactor float64 // prominence threshold as fraction of the spectrum maximum
	HeightFactor     float64 // height threshold as fraction of the spectrum maximum
	Distance         int     // minimum separation between accepted peaks in channels, 1 disables
	MaxPeaks         int     // cap on reported peaks
}

// Peak is one detected maximum.
type Peak struct {
	Channel    int     `json:"channel"`
	EnergyKeV  float64 `json:"energy_kev"`
	Counts     float64 `json:"counts"`
	Prominence float64 `json:"prominence"`
}

// Detector runs prominence-based peak detection with a fixed config.
type Detector struct {
	cfg Config
}

// New returns a detector, substituting defaults for zero config fields.
func New(cfg Config) *Detector {
	if cfg.ProminenceFactor <= 0 {
		cfg.ProminenceFactor = DefaultProminenceFactor
	}
	if cfg.HeightFactor <= 0 {
		cfg.HeightFactor = DefaultHeightFactor
	}
	if cfg.Distance <= 0 {
		cfg.Distance = DefaultDistance
	}
	if cfg.MaxPeaks < 1 {
		cfg.MaxPeaks = DefaultMaxPeaks
	}
	return &Detector{cfg: cfg}
}

// Detect returns the significant peaks of a spectrum, sorted by descending
// counts and capped to the configured maximum. energies carries the energy of
// each channel and must align with counts. An empty or all-zero spectrum
// yields an empty result, not an error.
func (d *Detector) Detect(counts, energies []float64) []Peak {
	n := len(counts)
	if n < 3 {
		return nil
	}

	maxCount := 0.0
	for _, c := range counts {
		if c > maxCount {
			maxCount = c
		}
	}
	if maxCount <= 0 {
		return nil
	}

	prominenceThreshold := maxCount * d.cfg.ProminenceFactor
	heightThreshold := maxCount * d.cfg.HeightFactor
	if heightThreshold < heightFloor {
		heightThreshold = heightFloor
	}

	var candidates []Peak
	for i := 1; i < n-1; i++ {
		if counts[i] <= counts[i-1] || counts[i] <= counts[i+1] {
			continue
		}
		if counts[i] < heightThreshold {
			continue
		}
		prom := prominence(counts, i)
		if prom < prominenceThreshold {
			continue
		}
		energy := 0.0
		if i < len(energies) {
			energy = energies[i]
		}
		candidates = append(candidates, Peak{
			Channel:    i,
			EnergyKeV:  energy,
			Counts:     counts[i],
			Prominence: prom,
		})
	}

	// Rank by counts, then prominence, then channel, so separation pruning
	// is deterministic and always keeps the taller of two close peaks.
	sort.Slice(candidates, func(a, b int) bool {
		ca, cb := candidates[a], candidates[b]
		if ca.Counts != cb.Counts {
			return ca.Counts > cb.Counts
		}
		if ca.Prominence != cb.Prominence {
			return ca.Prominence > cb.Prominence
		}
		return ca.Channel < cb.Channel
	})

	var accepted []Peak
	for _, cand := range candidates {
		if len(accepted) >= d.cfg.MaxPeaks {
			break
		}
		tooClose := false
		for _, a := range accepted {
			if abs(cand.Channel-a.Channel) < d.cfg.Distance {
				tooClose = true
				break
			}
		}
		if !tooClose {
			accepted = append(accepted, cand)
		}
	}
	return accepted
}

// prominence walks outward from a local maximum in both directions until a
// higher value or the array boundary is met, tracking the minimum along each
// walk. The peak stands prominence counts above the higher of the two minima.
func prominence(counts []float64, i int) float64 {
	h := counts[i]

	leftMin := h
	for j := i - 1; j >= 0; j-- {
		if counts[j] > h {
			break
		}
		if counts[j] < leftMin {
			leftMin = counts[j]
		}
	}

	rightMin := h
	for j := i + 1; j < len(counts); j++ {
		if counts[j] > h {
			break
		}
		if counts[j] < rightMin {
			rightMin = counts[j]
		}
	}

	base := leftMin
	if rightMin > base {
		base = rightMin
	}
	return h - base
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
