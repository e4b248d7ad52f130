package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

func (c *Controller) initHealthRoutes() {
	c.Group.GET("/health", c.HealthCheck)
}

// HealthCheck reports liveness plus enough build and registry detail to
// confirm what is actually running.
func (c *Controller) HealthCheck(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]any{
		"status":         "healthy",
		"version":        c.Build.GetVersion(),
		"build_date":     c.Build.GetBuildDate(),
		"uptime_seconds": int64(time.Since(c.startTime).Seconds()),
		"mode":           c.Settings.Analysis.Mode,
		"nuclides":       c.Registry.Len(),
		"chains":         len(c.Registry.Chains()),
	})
}
