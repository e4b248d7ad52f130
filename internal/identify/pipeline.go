// pipeline.go: two-phase identification over matcher and chain analyzer.
package identify

import (
	"fmt"

	"github.com/tkarvo/gammalyze/internal/nuclide"
	"github.com/tkarvo/gammalyze/internal/peaks"
)

// Output is the full identification result for one spectrum.
type Output struct {
	// Candidates is the reported list: suppression applied, confidence floor
	// enforced, capped per profile.
	Candidates []Candidate `json:"candidates"`
	// RawCandidates is the unsuppressed, unfloored pass-1 list exposed for
	// external score fusion.
	RawCandidates []Candidate `json:"raw_candidates"`
	// Chains holds the rated decay-series hypotheses.
	Chains []ChainCandidate `json:"chains"`
}

// Pipeline couples the matcher and chain analyzer. Matching and chain
// analysis inform each other, so the pipeline runs exactly two phases:
// pass 1 scores every nuclide unsuppressed, chain analysis rates the series
// on that output, pass 2 applies contextual suppression to the final list.
// The bounded order avoids mutual recursion between the components.
type Pipeline struct {
	registry *nuclide.Registry
	matcher  *Matcher
	analyzer *ChainAnalyzer
	profile  Profile
}

// NewPipeline builds the identification pipeline for one profile.
func NewPipeline(registry *nuclide.Registry, cfg MatcherConfig) *Pipeline {
	return &Pipeline{
		registry: registry,
		matcher:  NewMatcher(registry, cfg),
		analyzer: NewChainAnalyzer(registry, cfg.Profile),
		profile:  cfg.Profile,
	}
}

// Run identifies candidates and chain hypotheses from detected peaks. An
// empty peak list yields an empty output, not an error.
func (p *Pipeline) Run(detected []peaks.Peak) Output {
	raw := p.matcher.Match(detected)
	if len(raw) == 0 {
		return Output{}
	}

	confidences := make(map[nuclide.ID]float64, len(raw))
	for _, c := range raw {
		confidences[c.Nuclide] = c.Confidence
	}

	chains := p.analyzer.Analyze(confidences)
	suppressor := p.suppressor(chains)

	final := make([]Candidate, 0, len(raw))
	for _, c := range raw {
		if suppressor != nil && p.standalone(c.Nuclide) {
			c.Confidence = clampConfidence(c.Confidence * suppressionFactor)
			c.Suppressed = true
			c.SuppressionReason = fmt.Sprintf("%s confirmed at %s", suppressor.Name, suppressor.Level)
		}
		if c.Confidence >= p.profile.ConfidenceFloor {
			final = append(final, c)
		}
	}
	sortCandidates(final)
	if p.profile.MaxCandidates > 0 && len(final) > p.profile.MaxCandidates {
		final = final[:p.profile.MaxCandidates]
	}

	return Output{
		Candidates:    final,
		RawCandidates: raw,
		Chains:        chains,
	}
}

// suppressor returns the strongest confirmed chain that suppresses competing
// standalone hypotheses, or nil. Only abundant natural series flagged in the
// registry qualify, and only at MEDIUM or better. Detected chains never
// suppress each other's members.
func (p *Pipeline) suppressor(chains []ChainCandidate) *ChainCandidate {
	for i := range chains {
		if !chains[i].Level.AtLeast(LevelMedium) {
			continue
		}
		if c, ok := p.registry.Chain(chains[i].Chain); ok && c.Suppresses {
			return &chains[i]
		}
	}
	return nil
}

// standalone reports whether a nuclide belongs to no decay series.
func (p *Pipeline) standalone(id nuclide.ID) bool {
	n, ok := p.registry.Nuclide(id)
	return ok && n.Chain == ""
}
