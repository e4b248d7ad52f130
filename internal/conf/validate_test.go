package conf

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validSettings returns a settings struct that passes validation, matching the
// embedded defaults.
func validSettings() *Settings {
	return &Settings{
		Main: MainSettings{Name: "Gammalyze"},
		Analysis: AnalysisSettings{
			Channels:        1024,
			Mode:            "strict",
			AlertConfidence: 80,
			Calibration:     CalibrationSettings{Slope: 3.0, Intercept: 0},
			SNIP:            SNIPSettings{Enabled: true, Iterations: 24},
			Peaks: PeakSettings{
				ProminenceFactor: 0.05,
				HeightFactor:     0.1,
				Distance:         5,
				MaxPeaks:         20,
			},
			Resolution: ResolutionSettings{Dynamic: true, Base: 0.075, RefEnergyKeV: 661.7},
			Cache:      CacheSettings{Enabled: true, TTLSeconds: 300},
		},
		Web: WebSettings{Enabled: true, Port: "8090"},
	}
}

func TestValidateSettingsDefaults(t *testing.T) {
	t.Parallel()

	err := ValidateSettings(validSettings())
	assert.NoError(t, err, "default settings should validate")
}

func TestValidateSettingsFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantMsg string
	}{
		{
			name:    "zero channels",
			mutate:  func(s *Settings) { s.Analysis.Channels = 0 },
			wantMsg: "analysis.channels",
		},
		{
			name:    "unknown mode",
			mutate:  func(s *Settings) { s.Analysis.Mode = "paranoid" },
			wantMsg: "analysis.mode",
		},
		{
			name:    "negative calibration slope",
			mutate:  func(s *Settings) { s.Analysis.Calibration.Slope = -1 },
			wantMsg: "analysis.calibration.slope",
		},
		{
			name:    "zero snip iterations",
			mutate:  func(s *Settings) { s.Analysis.SNIP.Iterations = 0 },
			wantMsg: "analysis.snip.iterations",
		},
		{
			name:    "prominence factor above one",
			mutate:  func(s *Settings) { s.Analysis.Peaks.ProminenceFactor = 1.5 },
			wantMsg: "analysis.peaks.prominencefactor",
		},
		{
			name:    "alert confidence above scale",
			mutate:  func(s *Settings) { s.Analysis.AlertConfidence = 120 },
			wantMsg: "analysis.alertconfidence",
		},
		{
			name:    "bad web port",
			mutate:  func(s *Settings) { s.Web.Port = "http" },
			wantMsg: "web.port",
		},
		{
			name: "mqtt enabled without broker",
			mutate: func(s *Settings) {
				s.MQTT.Enabled = true
				s.MQTT.Broker = ""
				s.MQTT.Topic = "gammalyze/results"
			},
			wantMsg: "mqtt.broker",
		},
		{
			name: "notify enabled without urls",
			mutate: func(s *Settings) {
				s.Notify.Enabled = true
				s.Notify.URLs = nil
			},
			wantMsg: "notify.urls",
		},
		{
			name: "sentry enabled without dsn",
			mutate: func(s *Settings) {
				s.Sentry.Enabled = true
				s.Sentry.DSN = ""
			},
			wantMsg: "sentry.dsn",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := validSettings()
			tt.mutate(s)

			err := ValidateSettings(s)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestValidateSettingsAggregatesErrors(t *testing.T) {
	t.Parallel()

	s := validSettings()
	s.Analysis.Channels = -1
	s.Analysis.Mode = "nope"
	s.Web.Port = "not-a-port"

	err := ValidateSettings(s)
	require.Error(t, err)

	var ve ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Errors, 3, "all failures should be collected in one pass")
	assert.GreaterOrEqual(t, strings.Count(err.Error(), ";"), 2)
}

func TestValidateSettingsDisabledSectionsSkipped(t *testing.T) {
	t.Parallel()

	// Disabled integrations are not validated, an empty broker or DSN is fine.
	s := validSettings()
	s.MQTT.Enabled = false
	s.MQTT.Broker = ""
	s.Sentry.Enabled = false
	s.Sentry.DSN = ""
	s.Web.Enabled = false
	s.Web.Port = ""

	assert.NoError(t, ValidateSettings(s))
}
