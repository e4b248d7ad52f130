package analysis

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tkarvo/gammalyze/internal/conf"
	"github.com/tkarvo/gammalyze/internal/errors"
	"github.com/tkarvo/gammalyze/internal/nuclide"
	"github.com/tkarvo/gammalyze/internal/observability"
	"github.com/tkarvo/gammalyze/internal/spectrum"
)

// TestMain verifies no analysis goroutines outlive their test. The go-cache
// janitor is a process-lifetime housekeeping goroutine, not a leak.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("github.com/patrickmn/go-cache.(*janitor).Run"),
	)
}

func testSettings() *conf.Settings {
	return &conf.Settings{
		Analysis: conf.AnalysisSettings{
			Channels:    1024,
			Mode:        "strict",
			Calibration: conf.CalibrationSettings{Slope: 3.0},
			SNIP:        conf.SNIPSettings{Enabled: true, Iterations: 24},
			Peaks: conf.PeakSettings{
				ProminenceFactor: 0.05,
				HeightFactor:     0.1,
				Distance:         5,
				MaxPeaks:         20,
			},
			Cache: conf.CacheSettings{Enabled: true, TTLSeconds: 300},
		},
	}
}

func newEngine(t *testing.T, settings *conf.Settings) *Engine {
	t.Helper()
	reg, err := nuclide.Load("")
	require.NoError(t, err)
	e, err := New(settings, reg, nil)
	require.NoError(t, err)
	return e
}

// addPeak overlays a Gaussian photopeak on integer channel counts.
func addPeak(counts []int, center int, height, sigma float64) {
	for i := range counts {
		d := float64(i - center)
		counts[i] += int(height * math.Exp(-d*d/(2*sigma*sigma)))
	}
}

// cesiumCounts builds a flat continuum with a single photopeak at 663 keV
// under the 3 keV/channel test calibration.
func cesiumCounts() []int {
	counts := make([]int, 1024)
	for i := range counts {
		counts[i] = 50
	}
	addPeak(counts, 221, 5000, 4)
	return counts
}

func TestAnalyzeIdentifiesCesium(t *testing.T) {
	t.Parallel()
	e := newEngine(t, testSettings())

	res, err := e.Analyze(context.Background(), cesiumCounts(), spectrum.Calibration{}, Options{})
	require.NoError(t, err)

	assert.NotEmpty(t, res.ID)
	assert.Equal(t, "strict", res.Mode)
	assert.False(t, res.Cached)
	assert.False(t, res.Resized)
	require.NotEmpty(t, res.Peaks)
	assert.InDelta(t, 221, res.Peaks[0].Channel, 1)

	require.NotEmpty(t, res.Candidates)
	assert.Equal(t, nuclide.ID("cs137"), res.Candidates[0].Nuclide)
	assert.InDelta(t, 60, res.Candidates[0].Confidence, 1e-9, "single-line match is capped")

	assert.Len(t, res.Background, 1024)
	assert.Len(t, res.NetCounts, 1024)
	assert.GreaterOrEqual(t, res.DurationMs, 0.0)
	assert.False(t, res.AnalyzedAt.IsZero())
}

func TestAnalyzeCachesByDigestAndMode(t *testing.T) {
	t.Parallel()
	e := newEngine(t, testSettings())
	ctx := context.Background()

	first, err := e.Analyze(ctx, cesiumCounts(), spectrum.Calibration{}, Options{})
	require.NoError(t, err)
	require.False(t, first.Cached)

	second, err := e.Analyze(ctx, cesiumCounts(), spectrum.Calibration{}, Options{})
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.ID, second.ID, "cache returns the original analysis")

	// A different profile is a different cache entry.
	robust, err := e.Analyze(ctx, cesiumCounts(), spectrum.Calibration{}, Options{Mode: "robust"})
	require.NoError(t, err)
	assert.False(t, robust.Cached)
	assert.NotEqual(t, first.ID, robust.ID)

	// So is a different spectrum.
	other := cesiumCounts()
	other[10] += 7
	third, err := e.Analyze(ctx, other, spectrum.Calibration{}, Options{})
	require.NoError(t, err)
	assert.False(t, third.Cached)
	assert.NotEqual(t, first.ID, third.ID)
}

func TestAnalyzeDisabledCacheRecomputes(t *testing.T) {
	t.Parallel()
	settings := testSettings()
	settings.Analysis.Cache.Enabled = false
	e := newEngine(t, settings)
	ctx := context.Background()

	first, err := e.Analyze(ctx, cesiumCounts(), spectrum.Calibration{}, Options{})
	require.NoError(t, err)
	second, err := e.Analyze(ctx, cesiumCounts(), spectrum.Calibration{}, Options{})
	require.NoError(t, err)
	assert.False(t, second.Cached)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestAnalyzeResizesShortSpectrum(t *testing.T) {
	t.Parallel()
	e := newEngine(t, testSettings())

	counts := make([]int, 512)
	for i := range counts {
		counts[i] = 40
	}
	res, err := e.Analyze(context.Background(), counts, spectrum.Calibration{}, Options{})
	require.NoError(t, err)
	assert.True(t, res.Resized)
	assert.Len(t, res.NetCounts, 1024)
}

func TestAnalyzeWithoutBackgroundSubtraction(t *testing.T) {
	t.Parallel()
	settings := testSettings()
	settings.Analysis.SNIP.Enabled = false
	e := newEngine(t, settings)

	res, err := e.Analyze(context.Background(), cesiumCounts(), spectrum.Calibration{}, Options{})
	require.NoError(t, err)
	assert.Empty(t, res.Background)
	assert.Empty(t, res.NetCounts)
	require.NotEmpty(t, res.Peaks, "peaks are detected on raw counts")
}

func TestAnalyzeRejectsBadInput(t *testing.T) {
	t.Parallel()
	e := newEngine(t, testSettings())
	ctx := context.Background()

	counts := cesiumCounts()
	counts[5] = -1
	_, err := e.Analyze(ctx, counts, spectrum.Calibration{}, Options{})
	assert.True(t, errors.IsCategory(err, errors.CategorySpectrum), "negative counts")

	_, err = e.Analyze(ctx, cesiumCounts(), spectrum.Calibration{}, Options{Mode: "loose"})
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation), "unknown mode")
}

func TestAnalyzeCanceledContext(t *testing.T) {
	t.Parallel()
	e := newEngine(t, testSettings())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Analyze(ctx, cesiumCounts(), spectrum.Calibration{}, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAnalyzeRecordsMetrics(t *testing.T) {
	t.Parallel()
	m, err := observability.NewMetrics()
	require.NoError(t, err)

	reg, err := nuclide.Load("")
	require.NoError(t, err)
	e, err := New(testSettings(), reg, m)
	require.NoError(t, err)

	res, err := e.Analyze(context.Background(), cesiumCounts(), spectrum.Calibration{}, Options{})
	require.NoError(t, err)
	require.NotEmpty(t, res.Candidates)

	// Second call hits the cache; both paths must record without panicking
	// on a live metrics instance.
	_, err = e.Analyze(context.Background(), cesiumCounts(), spectrum.Calibration{}, Options{})
	require.NoError(t, err)
}

func TestNewRejectsBadDefaultMode(t *testing.T) {
	t.Parallel()
	settings := testSettings()
	settings.Analysis.Mode = "fuzzy"

	reg, err := nuclide.Load("")
	require.NoError(t, err)
	_, err = New(settings, reg, nil)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}
