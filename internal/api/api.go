// Package api implements the JSON analysis API served under /api/v1.
//
// The controller owns the echo route group and delegates all spectral work
// to the analysis engine; handlers stay thin and translate between HTTP
// and the engine, predictor and registry surfaces.
package api

import (
	"crypto/rand"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/tkarvo/gammalyze/internal/analysis"
	"github.com/tkarvo/gammalyze/internal/buildinfo"
	"github.com/tkarvo/gammalyze/internal/conf"
	"github.com/tkarvo/gammalyze/internal/decay"
	"github.com/tkarvo/gammalyze/internal/errors"
	"github.com/tkarvo/gammalyze/internal/logging"
	"github.com/tkarvo/gammalyze/internal/nuclide"
	"github.com/tkarvo/gammalyze/internal/observability"
)

// Controller wires the HTTP surface to the analysis stack.
type Controller struct {
	Echo      *echo.Echo
	Group     *echo.Group
	Settings  *conf.Settings
	Engine    *analysis.Engine
	Predictor *decay.Predictor
	Registry  *nuclide.Registry
	Build     buildinfo.BuildInfo

	// OnResult, when set, receives every successful full analysis on its
	// own goroutine. The serve command uses it to fan results out to MQTT
	// and push notifications.
	OnResult func(*analysis.Result)

	logger      *slog.Logger
	loggerClose func() error
	metrics     *observability.Metrics
	startTime   time.Time
}

// New creates the controller and registers all routes on e. The registry and
// predictor are derived from the engine so callers wire one dependency, not
// three. Metrics may be nil.
func New(e *echo.Echo, settings *conf.Settings, engine *analysis.Engine, build buildinfo.BuildInfo, m *observability.Metrics) *Controller {
	c := &Controller{
		Echo:      e,
		Settings:  settings,
		Engine:    engine,
		Predictor: decay.NewPredictor(engine.Registry()),
		Registry:  engine.Registry(),
		Build:     build,
		metrics:   m,
		startTime: time.Now(),
	}

	c.logger = logging.ForService("api")
	if settings.Web.Log.Enabled {
		fileLogger, closeFunc, err := logging.NewFileLogger(
			settings.Web.Log.Path, "api", slog.LevelInfo, logging.FileRotation{
				MaxSizeMB:  settings.Web.Log.MaxSizeMB,
				MaxBackups: settings.Web.Log.MaxBackups,
				MaxAgeDays: settings.Web.Log.MaxAgeDays,
			})
		if err != nil {
			c.logger.Error("failed to open API log file, using default logger",
				"path", settings.Web.Log.Path, "error", err)
		} else {
			c.logger = fileLogger
			c.loggerClose = closeFunc
		}
	}

	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.BodyLimit("1M"))
	e.Use(c.LoggingMiddleware())
	if m != nil && m.HTTP != nil {
		e.Use(c.MetricsMiddleware())
	}

	c.Group = e.Group("/api/v1")
	c.initRoutes()
	return c
}

// initRoutes registers the route groups. Kept as a table so the registration
// order is obvious and each group can log its own startup line in debug mode.
func (c *Controller) initRoutes() {
	routeGroups := []struct {
		name string
		init func()
	}{
		{"analysis", c.initAnalysisRoutes},
		{"decay", c.initDecayRoutes},
		{"registry", c.initRegistryRoutes},
		{"health", c.initHealthRoutes},
	}
	for _, g := range routeGroups {
		c.logger.Debug("registering routes", "group", g.name)
		g.init()
	}
}

// Shutdown releases controller resources. Safe to call more than once.
func (c *Controller) Shutdown() {
	if c.loggerClose != nil {
		if err := c.loggerClose(); err != nil {
			logging.ForService("api").Error("failed to close API log file", "error", err)
		}
		c.loggerClose = nil
	}
}

// ErrorResponse is the JSON envelope returned for every failed request.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// correlationIDChars deliberately omits ambiguous characters.
const correlationIDChars = "abcdefghijkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func generateCorrelationID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("t%07d", time.Now().UnixNano()%10000000)
	}
	for i := range b {
		b[i] = correlationIDChars[int(b[i])%len(correlationIDChars)]
	}
	return string(b)
}

// HandleError logs err with a correlation id and writes the standard error
// envelope. message is the client-facing summary; err stays server-side.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	correlationID := generateCorrelationID()
	c.logger.Error("API error",
		"correlation_id", correlationID,
		"error", err,
		"message", message,
		"code", code,
		"path", ctx.Request().URL.Path,
		"method", ctx.Request().Method,
		"ip", ctx.RealIP(),
	)
	return ctx.JSON(code, ErrorResponse{
		Error:         err.Error(),
		Message:       message,
		Code:          code,
		CorrelationID: correlationID,
	})
}

// statusFor maps error categories onto HTTP status codes. Anything the
// client could have fixed is a 400, lookups that miss are 404, the rest is
// an internal error.
func statusFor(err error) int {
	switch {
	case errors.IsCategory(err, errors.CategoryValidation):
		return http.StatusBadRequest
	case errors.IsCategory(err, errors.CategoryNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// badRequest builds the validation error used when a handler rejects input
// before it reaches the engine.
func badRequest(format string, args ...any) error {
	return errors.Newf(format, args...).
		Component("api").
		Category(errors.CategoryValidation).
		Build()
}
