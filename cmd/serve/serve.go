package serve

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tkarvo/gammalyze/internal/analysis"
	"github.com/tkarvo/gammalyze/internal/api"
	"github.com/tkarvo/gammalyze/internal/buildinfo"
	"github.com/tkarvo/gammalyze/internal/conf"
	"github.com/tkarvo/gammalyze/internal/logging"
	"github.com/tkarvo/gammalyze/internal/mqtt"
	"github.com/tkarvo/gammalyze/internal/notify"
	"github.com/tkarvo/gammalyze/internal/nuclide"
	"github.com/tkarvo/gammalyze/internal/observability"
	"github.com/tkarvo/gammalyze/internal/observability/metrics"
	"github.com/tkarvo/gammalyze/internal/telemetry"
)

// Command creates the serve command that runs the analysis service.
func Command(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the analysis service",
		Long: "Start the JSON analysis API together with the configured MQTT, " +
			"notification and Prometheus sinks, and block until SIGINT or SIGTERM.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(settings, build)
		},
	}

	// Set up flags specific to the 'serve' command
	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the serve command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.Web.Port, "port", viper.GetString("web.port"), "Port of the analysis API")
	cmd.Flags().BoolVar(&settings.Telemetry.Enabled, "telemetry", viper.GetBool("telemetry.enabled"), "Enable the Prometheus telemetry endpoint")
	cmd.Flags().StringVar(&settings.Telemetry.Listen, "listen", viper.GetString("telemetry.listen"), "Listen address and port of the telemetry endpoint")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %v", err)
	}

	return nil
}

// runServe wires the engine to its outward surfaces and blocks until a
// shutdown signal arrives.
func runServe(settings *conf.Settings, build *buildinfo.Context) error {
	logger := serviceLogger()

	// Platform details make a useful first line in service logs on the
	// embedded boxes this tends to run on.
	if info, err := host.Info(); err == nil {
		logger.Info("starting gammalyze",
			"version", build.GetVersion(),
			"os", info.OS,
			"platform", info.Platform,
			"platform_version", info.PlatformVersion)
	} else {
		logger.Info("starting gammalyze", "version", build.GetVersion())
	}

	registry, err := nuclide.Load(settings.Registry.UserFile)
	if err != nil {
		return err
	}
	logger.Info("nuclide registry loaded",
		"nuclides", registry.Len(),
		"chains", len(registry.Chains()))

	var m *observability.Metrics
	if settings.Web.Enabled || settings.Telemetry.Enabled || settings.MQTT.Enabled {
		if m, err = observability.NewMetrics(); err != nil {
			return fmt.Errorf("error initializing metrics: %w", err)
		}
	}

	engine, err := analysis.New(settings, registry, m)
	if err != nil {
		return err
	}

	// quitChan is used to signal the goroutines to stop.
	quitChan := make(chan struct{})
	var wg sync.WaitGroup

	sinks := newResultSinks(settings, m)
	defer sinks.close()

	var controller *api.Controller
	if settings.Web.Enabled {
		e := echo.New()
		e.HideBanner = true
		e.HidePort = true
		controller = api.New(e, settings, engine, build, m)
		controller.OnResult = sinks.publish
		startWebServer(&wg, e, settings, quitChan, logger)
	} else {
		logger.Warn("web server disabled, only MQTT and notification sinks are active")
	}

	startTelemetryEndpoint(&wg, settings, m, quitChan)

	// start quit signal monitor
	monitorShutdownSignals(quitChan)

	<-quitChan
	if controller != nil {
		controller.Shutdown()
	}

	// Wait for all goroutines to finish.
	wg.Wait()
	telemetry.Flush(3 * time.Second)
	logger.Info("shutdown complete")
	return nil
}

// resultSinks fans successful analyses out to MQTT and push notifications.
// Publish failures are logged, never propagated back to the API caller.
type resultSinks struct {
	mqtt     mqtt.Client
	notifier *notify.Notifier
	topic    string
	logger   *slog.Logger
}

func newResultSinks(settings *conf.Settings, m *observability.Metrics) *resultSinks {
	s := &resultSinks{logger: serviceLogger()}

	if settings.MQTT.Enabled {
		var mm *metrics.MQTTMetrics
		if m != nil {
			mm = m.MQTT
		}
		client := mqtt.NewClient(settings, mm)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := client.Connect(ctx); err != nil {
			// The client reconnects in the background, so a dead broker at
			// startup only delays publishing.
			s.logger.Error("initial MQTT connect failed",
				"broker", settings.MQTT.Broker, "error", err)
		}
		cancel()

		s.mqtt = client
		s.topic = settings.MQTT.Topic
	}

	if settings.Notify.Enabled {
		n, err := notify.New(settings)
		if err != nil {
			s.logger.Error("notifications disabled", "error", err)
		} else {
			s.notifier = n
		}
	}

	return s
}

// publish runs on the controller's per-result goroutine.
func (s *resultSinks) publish(result *analysis.Result) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if s.mqtt != nil {
		payload, err := json.Marshal(result)
		if err != nil {
			s.logger.Error("failed to marshal result", "id", result.ID, "error", err)
		} else if err := s.mqtt.Publish(ctx, s.topic, string(payload)); err != nil {
			s.logger.Error("MQTT publish failed",
				"topic", s.topic, "id", result.ID, "error", err)
		}
	}

	if s.notifier != nil {
		if _, err := s.notifier.Notify(ctx, result); err != nil {
			s.logger.Error("notification failed", "id", result.ID, "error", err)
		}
	}
}

func (s *resultSinks) close() {
	if s.mqtt != nil {
		s.mqtt.Disconnect()
	}
}

// startWebServer runs the API server and shuts it down when quitChan closes.
func startWebServer(wg *sync.WaitGroup, e *echo.Echo, settings *conf.Settings, quitChan <-chan struct{}, logger *slog.Logger) {
	addr := ":" + settings.Web.Port

	wg.Go(func() {
		logger.Info("analysis API listening", "addr", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Error("web server terminated", "addr", addr, "error", err)
		}
	})

	wg.Go(func() {
		<-quitChan
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.Shutdown(ctx); err != nil {
			logger.Error("web server shutdown failed", "error", err)
		}
	})
}

// startTelemetryEndpoint starts the Prometheus metrics server when enabled.
func startTelemetryEndpoint(wg *sync.WaitGroup, settings *conf.Settings, m *observability.Metrics, quitChan <-chan struct{}) {
	if !settings.Telemetry.Enabled || m == nil {
		return
	}

	endpoint, err := observability.NewEndpoint(settings, m)
	if err != nil {
		serviceLogger().Error("error initializing telemetry endpoint", "error", err)
		return
	}
	endpoint.Start(wg, quitChan)
}

// monitorShutdownSignals closes quitChan on SIGINT or SIGTERM.
func monitorShutdownSignals(quitChan chan struct{}) {
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

		<-sigChan

		serviceLogger().Info("received shutdown signal")
		close(quitChan)
	}()
}

func serviceLogger() *slog.Logger {
	logger := logging.ForService("serve")
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With("service", "serve")
}
