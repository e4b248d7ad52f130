// Package identify scores the nuclide registry against detected peaks and
// aggregates chain-member evidence into decay-series hypotheses. Matching and
// chain analysis are coupled through contextual suppression, so the package
// runs them as an explicit two-phase pipeline.
package identify

import (
	"math"

	"github.com/tkarvo/gammalyze/internal/errors"
)

// Mode selects a matching profile. Strict mode is tuned for live acquisition
// where false positives are expensive, robust mode for uploaded community
// files with uncertain calibration.
type Mode string

const (
	ModeStrict Mode = "strict"
	ModeRobust Mode = "robust"
)

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeStrict, ModeRobust:
		return Mode(s), nil
	default:
		return "", errors.Newf("unknown analysis mode %q, expected 'strict' or 'robust'", s).
			Component("identify").
			Category(errors.CategoryValidation).
			Build()
	}
}

// Profile is a named threshold set. Thresholds travel together so strict and
// robust behavior cannot drift apart through scattered literals.
type Profile struct {
	Mode            Mode
	ToleranceKeV    float64 // flat matching tolerance when dynamic resolution is off
	ConfidenceFloor float64 // minimum confidence for a reported candidate
	MemberFloor     float64 // confidence above which a chain member counts as detected
	MaxCandidates   int     // cap on reported candidates, 0 means unbounded
}

// ProfileFor returns the threshold set of a mode.
func ProfileFor(mode Mode) Profile {
	switch mode {
	case ModeRobust:
		return Profile{
			Mode:            ModeRobust,
			ToleranceKeV:    30,
			ConfidenceFloor: 10,
			MemberFloor:     25,
			MaxCandidates:   0,
		}
	default:
		return Profile{
			Mode:            ModeStrict,
			ToleranceKeV:    20,
			ConfidenceFloor: 25,
			MemberFloor:     35,
			MaxCandidates:   5,
		}
	}
}

// Resolution models detector energy resolution for dynamic tolerance. The
// scintillator FWHM scales with sqrt(1/E):
//
//	FWHM(E) = Base * E * sqrt(RefEnergy/E)
type Resolution struct {
	Base         float64 // fractional FWHM at the reference energy
	RefEnergyKeV float64 // conventionally the 661.7 keV Cs-137 line
}

// FWHM returns the expected full width at half maximum at an energy.
func (r Resolution) FWHM(energyKeV float64) float64 {
	if energyKeV <= 0 || r.Base <= 0 || r.RefEnergyKeV <= 0 {
		return 0
	}
	// Base*E*sqrt(Ref/E) rewritten without the division.
	return r.Base * math.Sqrt(energyKeV*r.RefEnergyKeV)
}

// Tolerance returns the matching window at an energy, 1.5 FWHM on each side.
func (r Resolution) Tolerance(energyKeV float64) float64 {
	return 1.5 * r.FWHM(energyKeV)
}
