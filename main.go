package main

import (
	"fmt"
	"os"
	"time"

	"github.com/tkarvo/gammalyze/cmd"
	"github.com/tkarvo/gammalyze/internal/buildinfo"
	"github.com/tkarvo/gammalyze/internal/conf"
	"github.com/tkarvo/gammalyze/internal/logging"
	"github.com/tkarvo/gammalyze/internal/telemetry"
)

// version and buildDate are overridden by the linker at release build time.
var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	logging.Init()

	settings, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading configuration: %v\n", err)
		os.Exit(1)
	}

	closeMainLog := setupMainLog(settings)

	build := buildinfo.NewContext(version, buildDate, loadSystemID())

	// Error telemetry is opt-in; a failure here never blocks startup.
	if err := telemetry.InitSentry(settings, build); err != nil {
		logging.Warn("error telemetry disabled", "error", err)
	}

	rootCmd := cmd.RootCommand(settings, build)
	cmdErr := rootCmd.Execute()
	telemetry.Flush(3 * time.Second)
	if closeMainLog != nil {
		_ = closeMainLog()
	}
	if cmdErr != nil {
		fmt.Fprintf(os.Stderr, "command error: %v\n", cmdErr)
		os.Exit(1)
	}
}

// setupMainLog moves structured logging to the configured rotating file so
// stdout stays reserved for command output.
func setupMainLog(settings *conf.Settings) func() error {
	if !settings.Main.Log.Enabled {
		return nil
	}
	closer, err := logging.EnableMainFileLog(settings.Main.Log.Path, logging.FileRotation{
		MaxSizeMB:  settings.Main.Log.MaxSizeMB,
		MaxBackups: settings.Main.Log.MaxBackups,
		MaxAgeDays: settings.Main.Log.MaxAgeDays,
	})
	if err != nil {
		logging.Warn("file logging disabled", "path", settings.Main.Log.Path, "error", err)
		return nil
	}
	return closer
}

// loadSystemID returns the stable anonymous install identifier, or an empty
// string when the config directory is not writable.
func loadSystemID() string {
	configPaths, err := conf.GetDefaultConfigPaths()
	if err != nil || len(configPaths) == 0 {
		return ""
	}
	id, err := telemetry.LoadOrCreateSystemID(configPaths[0])
	if err != nil {
		return ""
	}
	return id
}
