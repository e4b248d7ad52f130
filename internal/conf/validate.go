// validate.go: settings validation run after unmarshaling.
package conf

import (
	"fmt"
	"strconv"
	"strings"
)

// ValidationError collects all validation failures so the user can fix the
// whole config file in one pass.
type ValidationError struct {
	Errors []string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s", strings.Join(e.Errors, "; "))
}

// ValidateSettings checks the loaded settings for consistency.
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	validateAnalysisSettings(&settings.Analysis, &ve)
	validateWebSettings(&settings.Web, &ve)
	validateMQTTSettings(&settings.MQTT, &ve)
	validateNotifySettings(&settings.Notify, &ve)
	validateSentrySettings(&settings.Sentry, &ve)

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateAnalysisSettings(s *AnalysisSettings, ve *ValidationError) {
	if s.Channels <= 0 || s.Channels > 65536 {
		ve.Errors = append(ve.Errors, fmt.Sprintf("analysis.channels must be between 1 and 65536, got %d", s.Channels))
	}
	switch s.Mode {
	case "strict", "robust":
	default:
		ve.Errors = append(ve.Errors, fmt.Sprintf("analysis.mode must be 'strict' or 'robust', got %q", s.Mode))
	}
	if s.AlertConfidence < 0 || s.AlertConfidence > 100 {
		ve.Errors = append(ve.Errors, fmt.Sprintf("analysis.alertconfidence must be between 0 and 100, got %g", s.AlertConfidence))
	}
	if s.Calibration.Slope <= 0 {
		ve.Errors = append(ve.Errors, fmt.Sprintf("analysis.calibration.slope must be positive, got %g", s.Calibration.Slope))
	}
	if s.SNIP.Iterations < 1 {
		ve.Errors = append(ve.Errors, fmt.Sprintf("analysis.snip.iterations must be at least 1, got %d", s.SNIP.Iterations))
	}
	if s.Peaks.ProminenceFactor <= 0 || s.Peaks.ProminenceFactor > 1 {
		ve.Errors = append(ve.Errors, fmt.Sprintf("analysis.peaks.prominencefactor must be in (0, 1], got %g", s.Peaks.ProminenceFactor))
	}
	if s.Peaks.HeightFactor <= 0 || s.Peaks.HeightFactor > 1 {
		ve.Errors = append(ve.Errors, fmt.Sprintf("analysis.peaks.heightfactor must be in (0, 1], got %g", s.Peaks.HeightFactor))
	}
	if s.Peaks.Distance < 0 {
		ve.Errors = append(ve.Errors, fmt.Sprintf("analysis.peaks.distance must not be negative, got %d", s.Peaks.Distance))
	}
	if s.Peaks.MaxPeaks < 1 {
		ve.Errors = append(ve.Errors, fmt.Sprintf("analysis.peaks.maxpeaks must be at least 1, got %d", s.Peaks.MaxPeaks))
	}
	if s.Resolution.Base <= 0 || s.Resolution.Base >= 1 {
		ve.Errors = append(ve.Errors, fmt.Sprintf("analysis.resolution.base must be in (0, 1), got %g", s.Resolution.Base))
	}
	if s.Resolution.RefEnergyKeV <= 0 {
		ve.Errors = append(ve.Errors, fmt.Sprintf("analysis.resolution.refenergykev must be positive, got %g", s.Resolution.RefEnergyKeV))
	}
	if s.Cache.TTLSeconds < 0 {
		ve.Errors = append(ve.Errors, fmt.Sprintf("analysis.cache.ttlseconds must not be negative, got %d", s.Cache.TTLSeconds))
	}
}

func validateWebSettings(s *WebSettings, ve *ValidationError) {
	if !s.Enabled {
		return
	}
	port, err := strconv.Atoi(s.Port)
	if err != nil || port < 1 || port > 65535 {
		ve.Errors = append(ve.Errors, fmt.Sprintf("web.port must be a number between 1 and 65535, got %q", s.Port))
	}
}

func validateMQTTSettings(s *MQTTSettings, ve *ValidationError) {
	if !s.Enabled {
		return
	}
	if s.Broker == "" {
		ve.Errors = append(ve.Errors, "mqtt.broker is required when MQTT is enabled")
	}
	if s.Topic == "" {
		ve.Errors = append(ve.Errors, "mqtt.topic is required when MQTT is enabled")
	}
}

func validateNotifySettings(s *NotifySettings, ve *ValidationError) {
	if !s.Enabled {
		return
	}
	if len(s.URLs) == 0 {
		ve.Errors = append(ve.Errors, "notify.urls must contain at least one service URL when notifications are enabled")
	}
}

func validateSentrySettings(s *SentrySettings, ve *ValidationError) {
	if !s.Enabled {
		return
	}
	if s.DSN == "" {
		ve.Errors = append(ve.Errors, "sentry.dsn is required when Sentry telemetry is enabled")
	}
}
