// Package nuclide defines the gamma-line registry: nuclides, their emission
// lines and the natural decay series used for chain analysis. The registry is
// loaded once at startup and is read-only afterwards, so concurrent analyses
// can share it without locking.
package nuclide

import (
	"math"
)

// ID identifies a nuclide in the registry. IDs are validated against the
// registry at load time so the rest of the code never compares raw strings.
type ID string

// ChainID identifies a decay chain in the registry.
type ChainID string

// Line is a single gamma emission line.
type Line struct {
	EnergyKeV float64 `yaml:"energy_kev"`
	Intensity float64 `yaml:"intensity"` // emission probability per decay, in (0, 1]
}

// Nuclide is one registry entry. A nuclide without lines cannot be matched
// against a spectrum but may still appear in a decay chain (pure alpha or
// beta emitters).
type Nuclide struct {
	ID              ID      `yaml:"id"`
	Name            string  `yaml:"name"`
	HalfLifeSeconds float64 `yaml:"half_life_seconds,omitempty"`
	Stable          bool    `yaml:"stable,omitempty"`
	Weight          float64 `yaml:"weight,omitempty"` // natural abundance weight, 1.0 when unset
	Chain           ChainID `yaml:"chain,omitempty"`  // decay series membership
	Lines           []Line  `yaml:"lines,omitempty"`
}

// HasLines reports whether the nuclide emits measurable gamma lines.
func (n *Nuclide) HasLines() bool {
	return len(n.Lines) > 0
}

// KnownHalfLife reports whether a decay constant can be derived. Stable
// nuclides and entries with missing half-life data return false.
func (n *Nuclide) KnownHalfLife() bool {
	return !n.Stable && n.HalfLifeSeconds > 0
}

// DecayConstant returns lambda = ln(2)/half-life in 1/s, or 0 when the
// half-life is unknown or the nuclide is stable.
func (n *Nuclide) DecayConstant() float64 {
	if !n.KnownHalfLife() {
		return 0
	}
	return math.Ln2 / n.HalfLifeSeconds
}

// ChainMember is one step of a decay series. BranchingFraction is the
// probability that the decay of the previous member proceeds to this one;
// the first member's fraction is 1.
type ChainMember struct {
	Nuclide           ID        `yaml:"nuclide"`
	BranchingFraction float64   `yaml:"branching_fraction"`
	KeyEnergiesKeV    []float64 `yaml:"key_energies_kev,omitempty"`
}

// Chain is an ordered decay series from the long-lived parent down to the
// stable end member. Suppresses marks abundant natural series whose confirmed
// presence makes competing standalone-source hypotheses implausible.
type Chain struct {
	ID              ChainID       `yaml:"id"`
	Name            string        `yaml:"name"`
	AbundanceWeight float64       `yaml:"abundance_weight"`
	Suppresses      bool          `yaml:"suppresses,omitempty"`
	Members         []ChainMember `yaml:"members"`
}

// Scoreable returns the members that emit gamma lines and can therefore be
// confirmed by the matcher.
func (c *Chain) Scoreable(r *Registry) []ChainMember {
	var out []ChainMember
	for _, m := range c.Members {
		if n, ok := r.Nuclide(m.Nuclide); ok && n.HasLines() {
			out = append(out, m)
		}
	}
	return out
}
