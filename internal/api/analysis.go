package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tkarvo/gammalyze/internal/analysis"
	"github.com/tkarvo/gammalyze/internal/peaks"
)

// AnalyzeRequest is the canonical analysis document. A missing calibration
// falls back to the configured one, a missing mode to the configured
// matching profile.
type AnalyzeRequest = analysis.Document

// PeaksResponse lists detected peaks in channel order.
type PeaksResponse struct {
	Peaks []peaks.Peak `json:"peaks"`
	Total int          `json:"total"`
}

func (c *Controller) initAnalysisRoutes() {
	c.Group.POST("/analyze", c.Analyze)
	c.Group.POST("/peaks", c.DetectPeaks)
	c.Group.POST("/background", c.EstimateBackground)
}

// bindCounts decodes the shared request shape and rejects empty spectra
// before they reach the engine.
func (c *Controller) bindCounts(ctx echo.Context) (*AnalyzeRequest, error) {
	var req AnalyzeRequest
	if err := ctx.Bind(&req); err != nil {
		return nil, c.HandleError(ctx, err, "invalid request body", http.StatusBadRequest)
	}
	if len(req.Counts) == 0 {
		err := badRequest("counts must not be empty")
		return nil, c.HandleError(ctx, err, "counts must not be empty", http.StatusBadRequest)
	}
	return &req, nil
}

// Analyze runs the full pipeline and returns the identification result.
func (c *Controller) Analyze(ctx echo.Context) error {
	req, err := c.bindCounts(ctx)
	if req == nil {
		return err
	}

	res, err := c.Engine.Analyze(ctx.Request().Context(), req.Counts, req.Cal(),
		analysis.Options{Mode: req.Mode})
	if err != nil {
		return c.HandleError(ctx, err, "analysis failed", statusFor(err))
	}
	if c.OnResult != nil {
		go c.OnResult(res)
	}
	return ctx.JSON(http.StatusOK, res)
}

// DetectPeaks runs conditioning and peak detection only.
func (c *Controller) DetectPeaks(ctx echo.Context) error {
	req, err := c.bindCounts(ctx)
	if req == nil {
		return err
	}

	detected, err := c.Engine.DetectPeaks(ctx.Request().Context(), req.Counts, req.Cal())
	if err != nil {
		return c.HandleError(ctx, err, "peak detection failed", statusFor(err))
	}
	return ctx.JSON(http.StatusOK, PeaksResponse{Peaks: detected, Total: len(detected)})
}

// EstimateBackground returns the SNIP continuum and net counts.
func (c *Controller) EstimateBackground(ctx echo.Context) error {
	req, err := c.bindCounts(ctx)
	if req == nil {
		return err
	}

	sub, err := c.Engine.EstimateBackground(ctx.Request().Context(), req.Counts, req.Cal())
	if err != nil {
		return c.HandleError(ctx, err, "background estimation failed", statusFor(err))
	}
	return ctx.JSON(http.StatusOK, sub)
}
