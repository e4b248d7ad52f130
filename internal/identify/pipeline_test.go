package identify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkarvo/gammalyze/internal/nuclide"
)

func newPipeline(t *testing.T, mode Mode) *Pipeline {
	t.Helper()
	return NewPipeline(loadRegistry(t), MatcherConfig{Profile: ProfileFor(mode)})
}

// Uranium-series peaks (Bi-214, Th-234, Ra-226) plus a lone Cs-137 peak. The
// confirmed natural series halves the standalone hypotheses in pass 2 while
// chain members keep their full confidence.
func TestRunSuppressesStandaloneSources(t *testing.T) {
	t.Parallel()

	p := newPipeline(t, ModeRobust)
	out := p.Run(peaksAt(609.3, 1120.3, 1764.5, 63.3, 92.4, 92.8, 186.2, 661.7))

	require.NotEmpty(t, out.Chains)
	u238 := out.Chains[0]
	assert.Equal(t, nuclide.ChainID("u238-series"), u238.Chain)
	assert.Equal(t, LevelHigh, u238.Level)
	assert.GreaterOrEqual(t, len(u238.DetectedMembers), 4)

	cs := findCandidate(t, out.Candidates, "cs137")
	assert.True(t, cs.Suppressed)
	assert.InDelta(t, 30.0, cs.Confidence, 1e-9, "halved from the single-line cap")
	assert.Contains(t, cs.SuppressionReason, "Uranium Series")

	rawCs := findCandidate(t, out.RawCandidates, "cs137")
	assert.False(t, rawCs.Suppressed)
	assert.InDelta(t, 60.0, rawCs.Confidence, 1e-9, "raw list stays unsuppressed for score fusion")

	bi := findCandidate(t, out.Candidates, "bi214")
	assert.False(t, bi.Suppressed, "chain members are never suppressed")
	assert.InDelta(t, 100.0, bi.Confidence, 1e-9)
}

// Same peaks under the strict profile: tighter tolerance, floor 25 and the
// five-candidate cap.
func TestRunStrictFloorsAndCaps(t *testing.T) {
	t.Parallel()

	p := newPipeline(t, ModeStrict)
	out := p.Run(peaksAt(609.3, 1120.3, 1764.5, 63.3, 92.4, 92.8, 186.2, 661.7))

	assert.Len(t, out.Candidates, 5, "strict mode caps the reported list")
	assert.Greater(t, len(out.RawCandidates), 5, "raw list is never truncated")

	for _, c := range out.Candidates {
		assert.GreaterOrEqual(t, c.Confidence, ProfileFor(ModeStrict).ConfidenceFloor)
	}

	// Top of the list is the fully matched chain evidence.
	assert.Equal(t, nuclide.ID("bi214"), out.Candidates[0].Nuclide)
	assert.Equal(t, nuclide.ID("th234"), out.Candidates[1].Nuclide)

	u238 := chainByID(t, out.Chains, "u238-series")
	assert.Equal(t, LevelHigh, u238.Level)

	// U-235 coincidence matches die at the strict member floor.
	for _, c := range out.Chains {
		assert.NotEqual(t, nuclide.ChainID("u235-series"), c.Chain)
	}
}

// A lone 660 keV peak: Cs-137 is reported but capped, and no chain reaches
// the suppression threshold, so nothing is suppressed.
func TestRunSingleCesiumPeak(t *testing.T) {
	t.Parallel()

	p := newPipeline(t, ModeStrict)
	out := p.Run(peaksAt(660.0))

	cs := findCandidate(t, out.Candidates, "cs137")
	assert.LessOrEqual(t, cs.Confidence, 60.0)
	assert.Len(t, cs.MatchedLines, 1)
	assert.False(t, cs.Suppressed)

	for _, c := range out.Chains {
		assert.False(t, c.Level.AtLeast(LevelMedium), "no series should be confirmed by one peak")
	}
}

func TestRunNoPeaks(t *testing.T) {
	t.Parallel()

	out := newPipeline(t, ModeStrict).Run(nil)
	assert.Empty(t, out.Candidates)
	assert.Empty(t, out.RawCandidates)
	assert.Empty(t, out.Chains)
}

// Thorium-series evidence suppresses artificial sources just like uranium.
func TestRunThoriumSeriesSuppresses(t *testing.T) {
	t.Parallel()

	p := newPipeline(t, ModeRobust)
	out := p.Run(peaksAt(2614.5, 583.2, 860.6, 911.2, 969.0, 338.3, 238.6, 661.7))

	th232 := chainByID(t, out.Chains, "th232-series")
	assert.True(t, th232.Level.AtLeast(LevelMedium))

	cs := findCandidate(t, out.Candidates, "cs137")
	assert.True(t, cs.Suppressed)
	assert.Contains(t, cs.SuppressionReason, "Thorium Series")
}

func BenchmarkPipelineRobust(b *testing.B) {
	p := NewPipeline(loadRegistry(b), MatcherConfig{Profile: ProfileFor(ModeRobust)})
	pk := peaksAt(609.3, 1120.3, 1764.5, 63.3, 92.4, 92.8, 186.2, 661.7)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p.Run(pk)
	}
}
