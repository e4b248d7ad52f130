package decay

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkarvo/gammalyze/internal/errors"
	"github.com/tkarvo/gammalyze/internal/nuclide"
)

func loadRegistry(t *testing.T) *nuclide.Registry {
	t.Helper()
	reg, err := nuclide.Load("")
	require.NoError(t, err)
	return reg
}

func seriesFor(t *testing.T, r *Result, id nuclide.ID) Series {
	t.Helper()
	for _, s := range r.Series {
		if s.Nuclide == id {
			return s
		}
	}
	t.Fatalf("no series for %s", id)
	return Series{}
}

func TestPredictSimpleExponential(t *testing.T) {
	t.Parallel()
	p := NewPredictor(loadRegistry(t))

	halfLife := 9.4925e8
	res, err := p.Predict("cs137", 500, []float64{0, halfLife, 2 * halfLife, 3 * halfLife})
	require.NoError(t, err)

	require.Len(t, res.Series, 1)
	assert.False(t, res.Degraded)
	assert.Equal(t, "Cs-137", res.Series[0].Name)

	want := []float64{500, 250, 125, 62.5}
	for i, w := range want {
		assert.InEpsilon(t, w, res.Series[0].ActivitiesBq[i], 1e-9, "half-life %d", i)
	}
}

func TestPredictMassBalanceAtStart(t *testing.T) {
	t.Parallel()
	p := NewPredictor(loadRegistry(t))

	res, err := p.Predict("ra226", 1000, LinearTimes(3600, 10))
	require.NoError(t, err)

	// Nine radioactive members from Ra-226 down; the stable Pb-206 sink
	// carries no activity and is not reported.
	require.Len(t, res.Series, 9)
	assert.False(t, res.Degraded)

	total := 0.0
	for _, s := range res.Series {
		total += s.ActivitiesBq[0]
	}
	assert.InDelta(t, 1000, total, 1e-9, "all initial activity sits in the parent")

	for _, s := range res.Series[1:] {
		assert.Zero(t, s.ActivitiesBq[0], "%s starts at zero", s.Nuclide)
	}
}

func TestPredictSecularEquilibrium(t *testing.T) {
	t.Parallel()
	p := NewPredictor(loadRegistry(t))

	// Thirty days is about eight Rn-222 half-lives: the short-lived members
	// down to Po-214 should all sit within a percent of the radon activity,
	// while 22-year Pb-210 has barely started to grow in.
	thirtyDays := 30 * 86400.0
	res, err := p.Predict("ra226", 1000, []float64{thirtyDays})
	require.NoError(t, err)

	parent := seriesFor(t, res, "ra226").ActivitiesBq[0]
	assert.InDelta(t, 1000, parent, 0.1, "1600-year parent is effectively constant")

	radon := seriesFor(t, res, "rn222").ActivitiesBq[0]
	assert.InDelta(t, 995.6, radon, 0.5)

	for _, id := range []nuclide.ID{"po218", "pb214", "bi214", "po214"} {
		a := seriesFor(t, res, id).ActivitiesBq[0]
		assert.InEpsilon(t, radon, a, 0.015, "%s in equilibrium with radon", id)
	}

	lead210 := seriesFor(t, res, "pb210").ActivitiesBq[0]
	assert.Greater(t, lead210, 0.5)
	assert.Less(t, lead210, 10.0)
}

func TestPredictFullUraniumChainStaysBounded(t *testing.T) {
	t.Parallel()
	p := NewPredictor(loadRegistry(t))

	// Decay constants along the U-238 chain span twenty orders of magnitude.
	// Every activity must stay finite, non-negative, and below the parent's
	// initial activity since no member outlives U-238.
	res, err := p.Predict("u238", 1e6, LogTimes(1.4e17, 40))
	require.NoError(t, err)
	require.Len(t, res.Series, 14)

	for _, s := range res.Series {
		for i, a := range s.ActivitiesBq {
			require.False(t, math.IsNaN(a) || math.IsInf(a, 0), "%s at point %d", s.Nuclide, i)
			require.GreaterOrEqual(t, a, 0.0, "%s at point %d", s.Nuclide, i)
			require.LessOrEqual(t, a, 1.02e6, "%s at point %d", s.Nuclide, i)
		}
	}
}

func TestPredictStartMidChain(t *testing.T) {
	t.Parallel()
	p := NewPredictor(loadRegistry(t))

	res, err := p.Predict("pb214", 200, []float64{0})
	require.NoError(t, err)

	// Pb-214 down to Po-210, stable Pb-206 dropped.
	require.Len(t, res.Series, 6)
	assert.Equal(t, nuclide.ID("pb214"), res.Series[0].Nuclide)
	assert.Equal(t, nuclide.ID("po210"), res.Series[5].Nuclide)
	assert.Equal(t, 200.0, res.Series[0].ActivitiesBq[0])
}

func TestPredictDegradedChain(t *testing.T) {
	t.Parallel()

	// A user override that blanks the Bi-210 half-life leaves a gap in the
	// chain. Prediction keeps the solvable prefix and flags the result.
	dir := t.TempDir()
	userFile := filepath.Join(dir, "user.yaml")
	require.NoError(t, os.WriteFile(userFile, []byte(`
nuclides:
  - id: bi210
    name: Bi-210
    chain: u238-series
`), 0o644))

	reg, err := nuclide.Load(userFile)
	require.NoError(t, err)

	res, err := NewPredictor(reg).Predict("ra226", 1000, []float64{0, 3600})
	require.NoError(t, err)

	assert.True(t, res.Degraded)
	require.Len(t, res.Series, 7)
	assert.Equal(t, nuclide.ID("pb210"), res.Series[6].Nuclide)
}

func TestPredictRejectsBadInput(t *testing.T) {
	t.Parallel()
	p := NewPredictor(loadRegistry(t))

	times := []float64{0, 60}

	_, err := p.Predict("xx999", 100, times)
	assert.True(t, errors.IsNotFound(err))

	_, err = p.Predict("pb206", 100, times)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation), "stable nuclide")

	_, err = p.Predict("cs137", 0, times)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation), "zero activity")

	_, err = p.Predict("cs137", -5, times)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation), "negative activity")

	_, err = p.Predict("cs137", 100, nil)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation), "no time points")

	_, err = p.Predict("cs137", 100, []float64{-1, 60})
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation), "negative time")

	_, err = p.Predict("cs137", 100, []float64{60, 60})
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation), "non-ascending times")
}

func TestEqualDecayConstantsStayFinite(t *testing.T) {
	t.Parallel()

	// Identical constants would zero the Bateman denominators. After the
	// nudge the solution must approximate the analytic limit
	// A2(t) = A0 * lambda * t * exp(-lambda*t).
	lambdas := []float64{1e-3, 1e-3}
	separateClose(lambdas)
	assert.NotEqual(t, lambdas[0], lambdas[1])

	coeffs := batemanCoefficients(lambdas)
	got := activityAt(100, lambdas, coeffs, 1.0, 1000)

	want := 100 * 1e-3 * 1000 * math.Exp(-1)
	assert.InEpsilon(t, want, got, 1e-4)
}

func TestLinearTimes(t *testing.T) {
	t.Parallel()

	out := LinearTimes(100, 5)
	assert.Equal(t, []float64{0, 25, 50, 75, 100}, out)

	assert.Equal(t, []float64{0}, LinearTimes(100, 1))
	assert.Equal(t, []float64{0}, LinearTimes(0, 5))
}

func TestLogTimes(t *testing.T) {
	t.Parallel()

	out := LogTimes(1e6, 20)
	require.Len(t, out, 20)
	assert.Zero(t, out[0])
	assert.Equal(t, 1e6, out[19])
	for i := 1; i < len(out); i++ {
		assert.Greater(t, out[i], out[i-1], "ascending at %d", i)
	}

	assert.Equal(t, []float64{0, 50}, LogTimes(50, 2))
	assert.Equal(t, []float64{0}, LogTimes(1e6, 1))
}

func BenchmarkPredictRadiumChain(b *testing.B) {
	reg, err := nuclide.Load("")
	if err != nil {
		b.Fatal(err)
	}
	p := NewPredictor(reg)
	times := LinearTimes(3.15e7, 200)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := p.Predict("ra226", 1000, times); err != nil {
			b.Fatal(err)
		}
	}
}
