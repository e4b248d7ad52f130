package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tkarvo/gammalyze/internal/decay"
	"github.com/tkarvo/gammalyze/internal/errors"
)

const (
	defaultPredictPoints = 100
	maxPredictPoints     = 10000
)

// PredictRequest describes a decay-curve computation. The nuclide may be
// given by id ("cs137") or display name ("Cs-137").
type PredictRequest struct {
	Nuclide         string  `json:"nuclide"`
	ActivityBq      float64 `json:"activity_bq"`
	DurationSeconds float64 `json:"duration_seconds"`
	Points          int     `json:"points,omitempty"`
	Spacing         string  `json:"spacing,omitempty"` // "linear" (default) or "log"
}

// PredictResponse pairs the solved activity series with the resolved
// starting nuclide.
type PredictResponse struct {
	Nuclide      string         `json:"nuclide"`
	Name         string         `json:"name"`
	TimesSeconds []float64      `json:"times_seconds"`
	Series       []decay.Series `json:"series"`
	Degraded     bool           `json:"degraded"`
}

func (c *Controller) initDecayRoutes() {
	c.Group.POST("/predict", c.Predict)
}

// Predict solves the decay chain from the requested nuclide and returns
// activities over the sample grid.
func (c *Controller) Predict(ctx echo.Context) error {
	var req PredictRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "invalid request body", http.StatusBadRequest)
	}

	if req.DurationSeconds <= 0 {
		err := badRequest("duration_seconds must be positive, got %g", req.DurationSeconds)
		return c.HandleError(ctx, err, "duration_seconds must be positive", http.StatusBadRequest)
	}
	points := req.Points
	if points == 0 {
		points = defaultPredictPoints
	}
	if points < 2 || points > maxPredictPoints {
		err := badRequest("points must be between 2 and %d, got %d", maxPredictPoints, req.Points)
		return c.HandleError(ctx, err, "points out of range", http.StatusBadRequest)
	}

	var times []float64
	switch req.Spacing {
	case "", "linear":
		times = decay.LinearTimes(req.DurationSeconds, points)
	case "log":
		times = decay.LogTimes(req.DurationSeconds, points)
	default:
		err := badRequest("spacing must be %q or %q, got %q", "linear", "log", req.Spacing)
		return c.HandleError(ctx, err, "unknown spacing", http.StatusBadRequest)
	}

	nuc, ok := c.Registry.Resolve(req.Nuclide)
	if !ok {
		err := errors.Newf("unknown nuclide %q", req.Nuclide).
			Component("api").
			Category(errors.CategoryNotFound).
			Build()
		return c.HandleError(ctx, err, "unknown nuclide", http.StatusNotFound)
	}

	res, err := c.Predictor.Predict(nuc.ID, req.ActivityBq, times)
	if err != nil {
		return c.HandleError(ctx, err, "decay prediction failed", statusFor(err))
	}
	return ctx.JSON(http.StatusOK, PredictResponse{
		Nuclide:      string(nuc.ID),
		Name:         nuc.Name,
		TimesSeconds: res.TimesSeconds,
		Series:       res.Series,
		Degraded:     res.Degraded,
	})
}
