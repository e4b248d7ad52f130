// chains.go: aggregation of member evidence into decay-series hypotheses.
package identify

import (
	"sort"

	"github.com/tkarvo/gammalyze/internal/nuclide"
)

// Level is the qualitative rating of a chain hypothesis.
type Level string

const (
	LevelLow    Level = "LOW"
	LevelMedium Level = "MEDIUM"
	LevelHigh   Level = "HIGH"
)

func (l Level) rank() int {
	switch l {
	case LevelHigh:
		return 2
	case LevelMedium:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether the level is at or above another.
func (l Level) AtLeast(other Level) bool {
	return l.rank() >= other.rank()
}

// Rating thresholds. Member counts refer to independently detected chain
// members, weighted confidence is on a 0 to 1 scale.
const (
	highMemberCount   = 4
	highWeighted      = 0.8
	mediumMemberCount = 3
	mediumWeighted    = 0.6

	// Below this weighted confidence a chain is LOW no matter how many
	// members scraped past the detection floor.
	weightedConfidenceFloor = 0.15
)

// ChainCandidate is a rated decay-series hypothesis.
type ChainCandidate struct {
	Chain              nuclide.ChainID        `json:"chain"`
	Name               string                 `json:"name"`
	Level              Level                  `json:"level"`
	WeightedConfidence float64                `json:"weighted_confidence"`
	DetectedMembers    []nuclide.ID           `json:"detected_members"`
	MemberConfidences  map[nuclide.ID]float64 `json:"member_confidences,omitempty"`
}

// ChainAnalyzer rates decay chains against per-member matcher confidences.
type ChainAnalyzer struct {
	registry    *nuclide.Registry
	memberFloor float64
}

// NewChainAnalyzer builds an analyzer using the profile's member floor.
func NewChainAnalyzer(registry *nuclide.Registry, profile Profile) *ChainAnalyzer {
	return &ChainAnalyzer{registry: registry, memberFloor: profile.MemberFloor}
}

// Analyze rates every registry chain against unsuppressed member confidences
// and returns the chains with at least one detected member, strongest first.
func (a *ChainAnalyzer) Analyze(confidences map[nuclide.ID]float64) []ChainCandidate {
	var out []ChainCandidate
	for _, chain := range a.registry.Chains() {
		cand := a.rate(chain, confidences)
		if len(cand.DetectedMembers) == 0 {
			continue
		}
		out = append(out, cand)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Level != out[j].Level {
			return out[i].Level.rank() > out[j].Level.rank()
		}
		if out[i].WeightedConfidence != out[j].WeightedConfidence {
			return out[i].WeightedConfidence > out[j].WeightedConfidence
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// rate aggregates one chain. The average runs over all scoreable members,
// counting undetected ones as zero, so a single anomalously strong match
// cannot carry a whole series.
func (a *ChainAnalyzer) rate(chain *nuclide.Chain, confidences map[nuclide.ID]float64) ChainCandidate {
	cand := ChainCandidate{
		Chain: chain.ID,
		Name:  chain.Name,
		Level: LevelLow,
	}

	scoreable := chain.Scoreable(a.registry)
	if len(scoreable) == 0 {
		return cand
	}

	sum := 0.0
	for _, m := range scoreable {
		conf := confidences[m.Nuclide]
		sum += conf / 100
		if conf <= 0 {
			continue
		}
		if cand.MemberConfidences == nil {
			cand.MemberConfidences = make(map[nuclide.ID]float64)
		}
		cand.MemberConfidences[m.Nuclide] = conf
		if conf > a.memberFloor {
			cand.DetectedMembers = append(cand.DetectedMembers, m.Nuclide)
		}
	}

	mean := sum / float64(len(scoreable))

	// Abundance can lower the aggregate rating but never raise it above the
	// raw evidence.
	factor := abundanceFactor(chain.AbundanceWeight)
	if factor > 1 {
		factor = 1
	}

	wc := factor * mean
	if wc < 0 {
		wc = 0
	}
	if wc > 1 {
		wc = 1
	}

	cand.WeightedConfidence = wc
	cand.Level = levelFor(len(cand.DetectedMembers), wc)
	return cand
}

func levelFor(detected int, weighted float64) Level {
	switch {
	case weighted < weightedConfidenceFloor:
		return LevelLow
	case detected >= highMemberCount || weighted >= highWeighted:
		return LevelHigh
	case detected >= mediumMemberCount || weighted >= mediumWeighted:
		return LevelMedium
	default:
		return LevelLow
	}
}
