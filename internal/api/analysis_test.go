package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkarvo/gammalyze/internal/analysis"
	"github.com/tkarvo/gammalyze/internal/snip"
	"github.com/tkarvo/gammalyze/internal/spectrum"
)

func TestAnalyzeIdentifiesCesium(t *testing.T) {
	t.Parallel()
	c := newTestController(t)

	rec := doJSON(t, c, http.MethodPost, "/api/v1/analyze", AnalyzeRequest{Counts: cesiumCounts()})
	require.Equal(t, http.StatusOK, rec.Code)

	res := decodeBody[analysis.Result](t, rec)
	assert.NotEmpty(t, res.ID)
	assert.Equal(t, "strict", res.Mode)
	require.NotEmpty(t, res.Candidates)

	found := false
	for _, cand := range res.Candidates {
		if cand.Nuclide == "cs137" {
			found = true
		}
	}
	assert.True(t, found, "cs137 should be among candidates, got %v", res.Candidates)
}

func TestAnalyzeModeOverride(t *testing.T) {
	t.Parallel()
	c := newTestController(t)

	rec := doJSON(t, c, http.MethodPost, "/api/v1/analyze", AnalyzeRequest{
		Counts: cesiumCounts(),
		Mode:   "robust",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	res := decodeBody[analysis.Result](t, rec)
	assert.Equal(t, "robust", res.Mode)
}

func TestAnalyzeInvokesResultHook(t *testing.T) {
	t.Parallel()
	c := newTestController(t)

	got := make(chan *analysis.Result, 1)
	c.OnResult = func(res *analysis.Result) { got <- res }

	rec := doJSON(t, c, http.MethodPost, "/api/v1/analyze", AnalyzeRequest{Counts: cesiumCounts()})
	require.Equal(t, http.StatusOK, rec.Code)

	select {
	case res := <-got:
		assert.NotEmpty(t, res.ID)
		assert.NotEmpty(t, res.Candidates)
	case <-time.After(2 * time.Second):
		t.Fatal("result hook was not invoked")
	}
}

func TestAnalyzeRejectsUnknownMode(t *testing.T) {
	t.Parallel()
	c := newTestController(t)

	rec := doJSON(t, c, http.MethodPost, "/api/v1/analyze", AnalyzeRequest{
		Counts: cesiumCounts(),
		Mode:   "fuzzy",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	resp := decodeBody[ErrorResponse](t, rec)
	assert.Contains(t, resp.Error, "fuzzy")
}

func TestAnalyzeRejectsMalformedBody(t *testing.T) {
	t.Parallel()
	c := newTestController(t)

	rec := doJSON(t, c, http.MethodPost, "/api/v1/analyze", map[string]any{"counts": "not-an-array"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDetectPeaksFindsPhotopeak(t *testing.T) {
	t.Parallel()
	c := newTestController(t)

	rec := doJSON(t, c, http.MethodPost, "/api/v1/peaks", AnalyzeRequest{Counts: cesiumCounts()})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[PeaksResponse](t, rec)
	require.Equal(t, len(resp.Peaks), resp.Total)
	require.NotEmpty(t, resp.Peaks)

	found := false
	for _, p := range resp.Peaks {
		if p.EnergyKeV > 655 && p.EnergyKeV < 670 {
			found = true
		}
	}
	assert.True(t, found, "expected a peak near 663 keV, got %v", resp.Peaks)
}

func TestDetectPeaksCustomCalibration(t *testing.T) {
	t.Parallel()
	c := newTestController(t)

	// Halving the slope moves the 221-channel photopeak to ~331 keV.
	cal := spectrum.Calibration{Slope: 1.5}
	rec := doJSON(t, c, http.MethodPost, "/api/v1/peaks", AnalyzeRequest{
		Counts:      cesiumCounts(),
		Calibration: &cal,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[PeaksResponse](t, rec)
	require.NotEmpty(t, resp.Peaks)
	found := false
	for _, p := range resp.Peaks {
		if p.EnergyKeV > 325 && p.EnergyKeV < 338 {
			found = true
		}
	}
	assert.True(t, found, "expected a peak near 331 keV, got %v", resp.Peaks)
}

func TestEstimateBackgroundShape(t *testing.T) {
	t.Parallel()
	c := newTestController(t)

	rec := doJSON(t, c, http.MethodPost, "/api/v1/background", AnalyzeRequest{Counts: cesiumCounts()})
	require.Equal(t, http.StatusOK, rec.Code)

	res := decodeBody[snip.Result](t, rec)
	require.Len(t, res.Background, 1024)
	require.Len(t, res.NetCounts, 1024)

	// The continuum estimate under the photopeak must sit well below the
	// raw count there, leaving most of the peak in the net spectrum.
	assert.Less(t, res.Background[221], 600.0)
	assert.Greater(t, res.NetCounts[221], 4000.0)
}

func TestBackgroundRejectsEmptyCounts(t *testing.T) {
	t.Parallel()
	c := newTestController(t)

	rec := doJSON(t, c, http.MethodPost, "/api/v1/background", AnalyzeRequest{Counts: []int{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
