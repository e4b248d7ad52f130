// matcher.go: scoring of registry nuclides against detected peaks.
package identify

import (
	"math"
	"sort"

	"github.com/tkarvo/gammalyze/internal/nuclide"
	"github.com/tkarvo/gammalyze/internal/peaks"
)

const (
	// Cap for nuclides with a single emission line. A 1-of-1 match is never
	// treated as certain.
	singleLineCap = 60.0

	// Adjustments for multi-line nuclides.
	multiLineBonus          = 10.0 // three or more lines matched
	weakPartialPenalty      = 30.0 // exactly one of several expected lines matched
	multiLineBonusThreshold = 3

	// Confidence factor applied to standalone nuclides when an abundant
	// natural series is independently confirmed.
	suppressionFactor = 0.5
)

// abundanceFactor converts a natural abundance weight into a soft confidence
// multiplier. It is a prior, not a hard filter: even the rarest nuclide keeps
// half its evidence-based confidence.
func abundanceFactor(weight float64) float64 {
	return 1 + (weight-1)*0.5
}

// MatchedLine records one registry line paired with the peak that matched it.
type MatchedLine struct {
	EnergyKeV     float64 `json:"energy_kev"`
	Intensity     float64 `json:"intensity"`
	PeakEnergyKeV float64 `json:"peak_energy_kev"`
	PeakChannel   int     `json:"peak_channel"`
	DeltaKeV      float64 `json:"delta_kev"`
	ToleranceKeV  float64 `json:"tolerance_kev"`
}

// Candidate is one scored identification hypothesis.
type Candidate struct {
	Nuclide           nuclide.ID    `json:"nuclide"`
	Name              string        `json:"name"`
	Confidence        float64       `json:"confidence"`
	MatchedLines      []MatchedLine `json:"matched_lines"`
	TotalLines        int           `json:"total_lines"`
	Suppressed        bool          `json:"suppressed"`
	SuppressionReason string        `json:"suppression_reason,omitempty"`
}

// MatcherConfig selects the threshold profile and optional dynamic tolerance.
type MatcherConfig struct {
	Profile    Profile
	Dynamic    bool       // scale tolerance with detector resolution
	Resolution Resolution // used when Dynamic is set
}

// Matcher scores nuclides against peaks. It holds only read-only state and is
// safe for concurrent use.
type Matcher struct {
	registry *nuclide.Registry
	cfg      MatcherConfig
}

// NewMatcher builds a matcher over a loaded registry.
func NewMatcher(registry *nuclide.Registry, cfg MatcherConfig) *Matcher {
	return &Matcher{registry: registry, cfg: cfg}
}

// tolerance returns the matching window for a line energy.
func (m *Matcher) tolerance(energyKeV float64) float64 {
	if m.cfg.Dynamic {
		if tol := m.cfg.Resolution.Tolerance(energyKeV); tol > 0 {
			return tol
		}
	}
	return m.cfg.Profile.ToleranceKeV
}

// Match scores every nuclide with emission lines and returns the candidates
// that matched at least one peak, sorted by descending confidence. The
// returned confidences are unsuppressed; contextual suppression is applied by
// the pipeline after chain analysis.
func (m *Matcher) Match(detected []peaks.Peak) []Candidate {
	if len(detected) == 0 {
		return nil
	}

	var out []Candidate
	for _, n := range m.registry.Nuclides() {
		if !n.HasLines() {
			continue
		}
		cand := m.score(n, detected)
		if len(cand.MatchedLines) > 0 {
			out = append(out, cand)
		}
	}
	sortCandidates(out)
	return out
}

// score matches one nuclide's lines against the peaks and computes its
// unsuppressed confidence.
func (m *Matcher) score(n *nuclide.Nuclide, detected []peaks.Peak) Candidate {
	cand := Candidate{
		Nuclide:    n.ID,
		Name:       n.Name,
		TotalLines: len(n.Lines),
	}

	for _, line := range n.Lines {
		tol := m.tolerance(line.EnergyKeV)
		best := -1
		bestDelta := math.Inf(1)
		for i, p := range detected {
			delta := math.Abs(p.EnergyKeV - line.EnergyKeV)
			if delta <= tol && delta < bestDelta {
				best = i
				bestDelta = delta
			}
		}
		if best < 0 {
			continue
		}
		cand.MatchedLines = append(cand.MatchedLines, MatchedLine{
			EnergyKeV:     line.EnergyKeV,
			Intensity:     line.Intensity,
			PeakEnergyKeV: detected[best].EnergyKeV,
			PeakChannel:   detected[best].Channel,
			DeltaKeV:      detected[best].EnergyKeV - line.EnergyKeV,
			ToleranceKeV:  tol,
		})
	}

	matched := len(cand.MatchedLines)
	if matched == 0 {
		return cand
	}

	confidence := 100 * float64(matched) / float64(cand.TotalLines)

	if cand.TotalLines == 1 {
		if confidence > singleLineCap {
			confidence = singleLineCap
		}
	} else {
		switch {
		case matched >= multiLineBonusThreshold:
			confidence += multiLineBonus
		case matched == 1:
			confidence -= weakPartialPenalty
		}
	}

	confidence *= abundanceFactor(m.registry.WeightFor(n))

	// The single-line cap holds after weighting too: a 1-of-1 match never
	// reads as better than 60, however abundant the source.
	if cand.TotalLines == 1 && confidence > singleLineCap {
		confidence = singleLineCap
	}
	cand.Confidence = clampConfidence(confidence)
	return cand
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}

// sortCandidates orders by descending confidence, then matched lines, then
// name for deterministic output.
func sortCandidates(cands []Candidate) {
	sort.Slice(cands, func(a, b int) bool {
		ca, cb := cands[a], cands[b]
		if ca.Confidence != cb.Confidence {
			return ca.Confidence > cb.Confidence
		}
		if len(ca.MatchedLines) != len(cb.MatchedLines) {
			return len(ca.MatchedLines) > len(cb.MatchedLines)
		}
		return ca.Name < cb.Name
	})
}
