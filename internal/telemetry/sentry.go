// Package telemetry provides opt-in, privacy-scrubbed error tracking.
package telemetry

import (
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/tkarvo/gammalyze/internal/buildinfo"
	"github.com/tkarvo/gammalyze/internal/conf"
	"github.com/tkarvo/gammalyze/internal/errors"
	"github.com/tkarvo/gammalyze/internal/logging"
)

// PlatformInfo holds the privacy-safe platform facts attached to every event.
type PlatformInfo struct {
	OS           string `json:"os"`
	Architecture string `json:"arch"`
	NumCPU       int    `json:"num_cpu"`
	GoVersion    string `json:"go_version"`
}

func collectPlatformInfo() PlatformInfo {
	return PlatformInfo{
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
		NumCPU:       runtime.NumCPU(),
		GoVersion:    runtime.Version(),
	}
}

// InitSentry initializes the Sentry SDK and attaches the error reporter.
// Telemetry is strictly opt-in: without sentry.enabled nothing is sent and
// the reporter stays detached.
func InitSentry(settings *conf.Settings, build *buildinfo.Context) error {
	return initSentry(settings, build, nil)
}

// initSentry does the real work; tests inject a transport to capture events
// without network access.
func initSentry(settings *conf.Settings, build *buildinfo.Context, transport sentry.Transport) error {
	logger := serviceLogger()

	if !settings.Sentry.Enabled {
		logger.Info("sentry telemetry disabled (opt-in)")
		errors.SetTelemetryReporter(nil)
		return nil
	}

	environment := settings.Sentry.Environment
	if environment == "" {
		environment = "production"
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:        settings.Sentry.DSN,
		SampleRate: 1.0,
		Debug:      settings.Sentry.Debug,

		// Privacy: no stack traces, no hostname.
		AttachStacktrace: false,
		Environment:      environment,
		ServerName:       "",

		Release:    fmt.Sprintf("gammalyze@%s", build.GetVersion()),
		BeforeSend: scrubEvent,
		Transport:  transport,
	})
	if err != nil {
		return errors.New(err).
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}

	configureScope(build)
	errors.SetTelemetryReporter(errors.NewSentryReporter(true))

	logger.Info("sentry telemetry initialized",
		"system_id", build.GetSystemID(),
		"version", build.GetVersion(),
		"environment", environment,
		"debug", settings.Sentry.Debug)
	return nil
}

// scrubEvent strips everything that could identify the host or operator.
// Only the error type and component survive in the extras.
func scrubEvent(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""

	if event.Contexts != nil {
		delete(event.Contexts, "device")
		delete(event.Contexts, "os")
		delete(event.Contexts, "runtime")
	}

	for k := range event.Extra {
		if k != "error_type" && k != "component" {
			delete(event.Extra, k)
		}
	}

	if event.Tags != nil {
		delete(event.Tags, "server_name")
		delete(event.Tags, "hostname")
	}

	return event
}

func configureScope(build *buildinfo.Context) {
	info := collectPlatformInfo()

	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("system_id", build.GetSystemID())
		scope.SetTag("os", info.OS)
		scope.SetTag("arch", info.Architecture)

		scope.SetContext("application", map[string]any{
			"name":      "gammalyze",
			"version":   build.GetVersion(),
			"system_id": build.GetSystemID(),
		})
		scope.SetContext("platform", map[string]any{
			"os":         info.OS,
			"arch":       info.Architecture,
			"num_cpu":    info.NumCPU,
			"go_version": info.GoVersion,
		})
	})
}

// CaptureMessage sends a plain message with component attribution.
func CaptureMessage(message string, level sentry.Level, component string) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", component)
		scope.SetLevel(level)
		sentry.CaptureMessage(message)
	})
}

// CaptureError sends an error with component attribution.
func CaptureError(err error, component string) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", component)
		scope.SetLevel(sentry.LevelError)
		sentry.CaptureException(err)
	})
}

// Flush waits for buffered events to be delivered, typically on shutdown.
func Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}

func serviceLogger() *slog.Logger {
	logger := logging.ForService("telemetry")
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With("service", "telemetry")
}
