package api

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

// LoggingMiddleware logs every request with latency. Uses LogAttrs to avoid
// allocation on the hot path.
func (c *Controller) LoggingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()

			err := next(ctx)
			if err != nil {
				ctx.Error(err)
			}

			req := ctx.Request()
			res := ctx.Response()
			c.logger.LogAttrs(req.Context(), slog.LevelInfo, "API request",
				slog.String("method", req.Method),
				slog.String("path", req.URL.Path),
				slog.String("query", req.URL.RawQuery),
				slog.Int("status", res.Status),
				slog.String("ip", ctx.RealIP()),
				slog.Float64("latency_ms", float64(time.Since(start).Microseconds())/1000.0),
			)
			return err
		}
	}
}

// MetricsMiddleware records request counts, durations and response sizes.
// The route template is used as the path label to keep cardinality bounded.
func (c *Controller) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			h := c.metrics.HTTP
			h.RequestStarted()
			start := time.Now()

			err := next(ctx)
			if err != nil {
				ctx.Error(err)
			}

			req := ctx.Request()
			res := ctx.Response()
			path := ctx.Path()
			if path == "" {
				path = req.URL.Path
			}
			h.RequestFinished()
			h.RecordRequest(req.Method, path, strconv.Itoa(res.Status))
			h.ObserveRequestDuration(req.Method, path, time.Since(start).Seconds())
			h.ObserveResponseSize(req.Method, path, float64(res.Size))
			return err
		}
	}
}
