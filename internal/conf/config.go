// config.go: settings struct and loading for the Gammalyze application.
package conf

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"

	"github.com/tkarvo/gammalyze/internal/errors"
)

//go:embed config.yaml
var configFiles embed.FS

// LogConfig holds file logging and rotation settings.
type LogConfig struct {
	Enabled    bool   // true to enable file logging
	Path       string // path to log file
	MaxSizeMB  int    // rotate after the file exceeds this size
	MaxBackups int    // number of rotated files to keep
	MaxAgeDays int    // days to keep rotated files
}

// MainSettings contains process-wide settings.
type MainSettings struct {
	Name string    // station / instance name used in logs, MQTT client id and API
	Log  LogConfig // main application log
}

// CalibrationSettings is the fallback linear energy calibration applied when an
// input document carries counts but no calibration of its own.
type CalibrationSettings struct {
	Slope     float64 // keV per channel
	Intercept float64 // keV offset of channel zero
}

// SNIPSettings controls the background estimation pre-pass.
type SNIPSettings struct {
	Enabled    bool // subtract continuum before peak detection
	Iterations int  // clipping passes; 24 is the validated default
}

// PeakSettings are the adaptive peak detection thresholds.
type PeakSettings struct {
	ProminenceFactor float64 // prominence threshold as fraction of the spectrum maximum
	HeightFactor     float64 // height threshold as fraction of the spectrum maximum
	Distance         int     // minimum separation between accepted peaks, in channels
	MaxPeaks         int     // cap on reported peaks
}

// ResolutionSettings model detector energy resolution for dynamic matching
// tolerance. When Dynamic is false a flat per-profile tolerance is used.
type ResolutionSettings struct {
	Dynamic      bool    // scale matching tolerance with sqrt(1/E)
	Base         float64 // fractional FWHM at the reference energy (NaI ~0.075)
	RefEnergyKeV float64 // reference energy, conventionally the Cs-137 line
}

// CacheSettings controls memoization of analysis results.
type CacheSettings struct {
	Enabled    bool // cache identification results keyed by spectrum digest
	TTLSeconds int  // seconds before a cached result expires
}

// AnalysisSettings groups everything the analysis engine needs.
type AnalysisSettings struct {
	Channels        int     // canonical spectrum length; inputs are padded/truncated to this
	Mode            string  // "strict" or "robust" matching profile
	AlertConfidence float64 // notify when a candidate reaches this confidence (0 disables)
	Calibration     CalibrationSettings
	SNIP            SNIPSettings
	Peaks           PeakSettings
	Resolution      ResolutionSettings
	Cache           CacheSettings
}

// RegistrySettings configures the nuclide registry.
type RegistrySettings struct {
	UserFile string // optional YAML file with user-defined nuclides merged at startup
}

// InputSettings configure the one-shot analyze command.
type InputSettings struct {
	Path   string `yaml:"-"` // spectrum file to analyze, set from the command line
	Format string // stdout rendering, "table" or "json"
	Output string `yaml:"-"` // optional path for the JSON result document
}

// WebSettings contains settings for the JSON API server.
type WebSettings struct {
	Enabled bool
	Port    string
	Log     LogConfig // API request/error log
}

// TelemetrySettings controls the Prometheus endpoint.
type TelemetrySettings struct {
	Enabled bool
	Listen  string // listen address and port of the metrics endpoint
}

// MQTTSettings contains settings for publishing analysis events.
type MQTTSettings struct {
	Enabled  bool
	Broker   string // tcp://host:port
	Topic    string
	Username string
	Password string
	Retain   bool
}

// NotifySettings configures push alerts for significant identifications.
type NotifySettings struct {
	Enabled bool
	URLs    []string // shoutrrr service URLs
}

// SentrySettings controls opt-in error telemetry.
type SentrySettings struct {
	Enabled     bool
	DSN         string
	Environment string
	Debug       bool
}

// Settings is the root configuration structure.
type Settings struct {
	Debug bool

	Main      MainSettings
	Analysis  AnalysisSettings
	Registry  RegistrySettings
	Input     InputSettings
	Web       WebSettings
	Telemetry TelemetrySettings
	MQTT      MQTTSettings
	Notify    NotifySettings
	Sentry    SentrySettings
}

var (
	settingsMutex    sync.RWMutex
	settingsInstance *Settings
)

// Load reads the configuration from disk (creating a default config file on
// first run), validates it and stores it as the process-wide instance.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with config paths, defaults and the config file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return createDefaultConfig()
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}
	return nil
}

// createDefaultConfig writes the embedded default config to the first config
// path and loads it.
func createDefaultConfig() error {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	configPath := filepath.Join(configPaths[0], "config.yaml")

	defaultConfig, err := configFiles.ReadFile("config.yaml")
	if err != nil {
		return fmt.Errorf("error reading embedded default config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}
	if err := os.WriteFile(configPath, defaultConfig, 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	fmt.Println("Created default config file at:", configPath)
	return viper.ReadInConfig()
}

// Setting returns the current settings instance. It panics if Load has not
// been called; main loads settings before any command runs.
func Setting() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	if settingsInstance == nil {
		panic("conf.Setting() called before conf.Load()")
	}
	return settingsInstance
}

// GetSettings returns the current settings instance or nil when not loaded.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SetSettings replaces the process-wide settings instance. Intended for tests.
func SetSettings(s *Settings) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()
	settingsInstance = s
}
