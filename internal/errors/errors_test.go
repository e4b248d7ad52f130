package errors

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorBuilder(t *testing.T) {
	t.Parallel()

	base := NewStd("calibration slope must be positive")
	ee := New(base).
		Component("spectrum").
		Category(CategoryValidation).
		Context("slope", -1.5).
		Build()

	assert.Equal(t, "calibration slope must be positive", ee.Error())
	assert.Equal(t, "spectrum", ee.GetComponent())
	assert.Equal(t, CategoryValidation, ee.Category)
	assert.Equal(t, -1.5, ee.Context["slope"])
	assert.WithinDuration(t, time.Now(), ee.Timestamp, time.Second)
}

func TestNewf(t *testing.T) {
	t.Parallel()

	ee := Newf("unknown nuclide %q", "Xx-999").Category(CategoryNotFound).Build()
	assert.Equal(t, `unknown nuclide "Xx-999"`, ee.Error())
	assert.True(t, IsNotFound(ee))
}

func TestUnwrapAndIs(t *testing.T) {
	t.Parallel()

	sentinel := NewStd("half-life unknown")
	wrapped := New(fmt.Errorf("predicting Ra-226: %w", sentinel)).
		Category(CategoryDecayPredict).
		Build()

	assert.True(t, Is(wrapped, sentinel))
	assert.True(t, IsCategory(wrapped, CategoryDecayPredict))
	assert.False(t, IsCategory(wrapped, CategoryValidation))
}

func TestCategoryDefaultsToGeneric(t *testing.T) {
	t.Parallel()

	ee := Newf("boom").Build()
	assert.Equal(t, CategoryGeneric, ee.Category)
}

func TestPriorityValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"valid high", PriorityHigh, PriorityHigh},
		{"valid critical", PriorityCritical, PriorityCritical},
		{"invalid falls back to medium", "urgent", PriorityMedium},
		{"empty stays empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ee := Newf("x").Priority(tt.in).Build()
			assert.Equal(t, tt.want, ee.Priority)
		})
	}
}

func TestSpectrumContext(t *testing.T) {
	t.Parallel()

	ee := Newf("channel count mismatch").
		Category(CategorySpectrum).
		SpectrumContext(1024, 3.0).
		Build()

	require.NotNil(t, ee.Context)
	assert.Equal(t, 1024, ee.Context["channels"])
	assert.Equal(t, 3.0, ee.Context["calibration_slope"])
}

type stubReporter struct {
	enabled  bool
	received []*EnhancedError
}

func (s *stubReporter) ReportError(ee *EnhancedError) {
	s.received = append(s.received, ee)
	ee.MarkReported()
}

func (s *stubReporter) IsEnabled() bool { return s.enabled }

func TestTelemetryReporting(t *testing.T) {
	// Not parallel: swaps the global reporter.
	reporter := &stubReporter{enabled: true}
	SetTelemetryReporter(reporter)
	defer SetTelemetryReporter(nil)

	ee := Newf("snip iteration overflow").Category(CategoryBackground).Build()

	require.Len(t, reporter.received, 1)
	assert.Same(t, ee, reporter.received[0])
	assert.True(t, ee.IsReported())
}

func TestTelemetryDisabledSkipsReporting(t *testing.T) {
	reporter := &stubReporter{enabled: false}
	SetTelemetryReporter(reporter)
	defer SetTelemetryReporter(nil)

	Newf("quiet").Build()
	assert.Empty(t, reporter.received)
}
