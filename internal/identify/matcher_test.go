package identify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkarvo/gammalyze/internal/nuclide"
	"github.com/tkarvo/gammalyze/internal/peaks"
)

func loadRegistry(t testing.TB) *nuclide.Registry {
	t.Helper()
	reg, err := nuclide.Load("")
	require.NoError(t, err)
	return reg
}

// peaksAt builds synthetic peaks at the given energies, assuming a 3 keV per
// channel calibration.
func peaksAt(energies ...float64) []peaks.Peak {
	out := make([]peaks.Peak, 0, len(energies))
	for _, e := range energies {
		out = append(out, peaks.Peak{
			Channel:    int(e / 3.0),
			EnergyKeV:  e,
			Counts:     1000,
			Prominence: 900,
		})
	}
	return out
}

func strictMatcher(t *testing.T) *Matcher {
	t.Helper()
	return NewMatcher(loadRegistry(t), MatcherConfig{Profile: ProfileFor(ModeStrict)})
}

func findCandidate(t *testing.T, cands []Candidate, id nuclide.ID) Candidate {
	t.Helper()
	for _, c := range cands {
		if c.Nuclide == id {
			return c
		}
	}
	t.Fatalf("candidate %s not found", id)
	return Candidate{}
}

func TestMatchSingleLineCappedAt60(t *testing.T) {
	t.Parallel()

	m := strictMatcher(t)

	tests := []struct {
		name   string
		energy float64
	}{
		{"exact match", 661.7},
		{"offset within tolerance", 655.0},
	}
	for _, tt := range tests {
		cands := m.Match(peaksAt(tt.energy))
		cs := findCandidate(t, cands, "cs137")
		assert.InDelta(t, 60.0, cs.Confidence, 1e-9, "%s: 1-of-1 is never certain", tt.name)
		assert.Equal(t, 1, cs.TotalLines)
		require.Len(t, cs.MatchedLines, 1)
		assert.InDelta(t, 661.7, cs.MatchedLines[0].EnergyKeV, 1e-9)
	}
}

// Single-line cap survives abundance weighting: Ra-224 sits in the thorium
// series whose weight would otherwise push an exact match far above 60.
func TestMatchSingleLineCapSurvivesAbundance(t *testing.T) {
	t.Parallel()

	cands := strictMatcher(t).Match(peaksAt(241.0))
	ra := findCandidate(t, cands, "ra224")
	assert.LessOrEqual(t, ra.Confidence, 60.0)
	assert.InDelta(t, 60.0, ra.Confidence, 1e-9)
}

// Eu-152 has five lines, so walking up the matched count exercises every
// branch of the multi-line adjustment: 1 match takes the weak-partial
// penalty, 3 or more earn the bonus.
func TestMatchMultiLineAdjustments(t *testing.T) {
	t.Parallel()

	m := strictMatcher(t)
	lines := []float64{121.8, 344.3, 1408.0, 964.1, 1112.1}

	want := []float64{0, 40, 70, 90, 100}
	var got []float64
	for k := 1; k <= len(lines); k++ {
		cands := m.Match(peaksAt(lines[:k]...))
		eu := findCandidate(t, cands, "eu152")
		assert.Len(t, eu.MatchedLines, k)
		got = append(got, eu.Confidence)
	}

	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-9, "%d of 5 lines matched", i+1)
	}
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i], got[i-1], "confidence must not drop as more lines match")
	}
}

func TestMatchAbundanceWeighting(t *testing.T) {
	t.Parallel()

	m := strictMatcher(t)

	// All four U-235 lines matched: base 100 + bonus 10, then scaled by the
	// rarity factor 1 + (0.0072-1)*0.5.
	cands := m.Match(peaksAt(185.7, 143.8, 163.3, 205.3))
	u235 := findCandidate(t, cands, "u235")
	assert.InDelta(t, 110*0.5036, u235.Confidence, 0.01)

	// A fully matched U-238 series member carries weight 1 and clamps at 100.
	cands = m.Match(peaksAt(351.9, 295.2, 242.0))
	pb214 := findCandidate(t, cands, "pb214")
	assert.InDelta(t, 100.0, pb214.Confidence, 1e-9)

	assert.Less(t, u235.Confidence, pb214.Confidence,
		"equal match fractions: the rare isotope scores below the reference")
}

func TestMatchFlatVersusDynamicTolerance(t *testing.T) {
	t.Parallel()

	reg := loadRegistry(t)
	res := Resolution{Base: 0.075, RefEnergyKeV: 661.7}

	flat := NewMatcher(reg, MatcherConfig{Profile: ProfileFor(ModeRobust)})
	dynamic := NewMatcher(reg, MatcherConfig{Profile: ProfileFor(ModeRobust), Dynamic: true, Resolution: res})

	// 50 keV off the Cs-137 line: outside the flat 30 keV window but inside
	// the 1.5 FWHM window of a NaI detector at that energy.
	misaligned := peaksAt(711.7)
	for _, c := range flat.Match(misaligned) {
		assert.NotEqual(t, nuclide.ID("cs137"), c.Nuclide)
	}
	cs := findCandidate(t, dynamic.Match(misaligned), "cs137")
	assert.InDelta(t, 60.0, cs.Confidence, 1e-9)

	// At 59.5 keV the dynamic window shrinks to about 22 keV: a 25 keV
	// offset matches under the flat window only.
	lowEnergy := peaksAt(84.5)
	findCandidate(t, flat.Match(lowEnergy), "am241")
	for _, c := range dynamic.Match(lowEnergy) {
		assert.NotEqual(t, nuclide.ID("am241"), c.Nuclide)
	}
}

func TestMatchPicksClosestPeak(t *testing.T) {
	t.Parallel()

	m := strictMatcher(t)
	cands := m.Match(peaksAt(660.0, 670.0))

	cs := findCandidate(t, cands, "cs137")
	require.Len(t, cs.MatchedLines, 1)
	assert.InDelta(t, 660.0, cs.MatchedLines[0].PeakEnergyKeV, 1e-9)
	assert.InDelta(t, -1.7, cs.MatchedLines[0].DeltaKeV, 1e-9)
}

func TestMatchNoPeaks(t *testing.T) {
	t.Parallel()

	assert.Empty(t, strictMatcher(t).Match(nil))
	assert.Empty(t, strictMatcher(t).Match([]peaks.Peak{}))
}

func TestMatchSortedByConfidence(t *testing.T) {
	t.Parallel()

	cands := strictMatcher(t).Match(peaksAt(661.7, 1173.2, 1332.5, 59.5))
	require.NotEmpty(t, cands)
	for i := 1; i < len(cands); i++ {
		assert.GreaterOrEqual(t, cands[i-1].Confidence, cands[i].Confidence)
	}
	assert.Equal(t, nuclide.ID("co60"), cands[0].Nuclide, "2-of-2 Co-60 outranks the single-line sources")
}
