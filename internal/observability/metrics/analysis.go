// Package metrics provides custom Prometheus metrics for the gammalyze
// analysis pipeline and its supporting services.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// AnalysisMetrics contains all Prometheus metrics related to spectrum
// analysis: peak detection, background estimation, identification, and the
// result cache.
type AnalysisMetrics struct {
	SpectraAnalyzed  *prometheus.CounterVec
	Identifications  *prometheus.CounterVec
	ChainDetections  *prometheus.CounterVec
	SpectrumResizes  prometheus.Counter
	CacheHits        prometheus.Counter
	CacheMisses      prometheus.Counter
	AnalysisDuration prometheus.Histogram
	PeaksPerSpectrum prometheus.Histogram

	registry *prometheus.Registry
}

// NewAnalysisMetrics creates a new instance of AnalysisMetrics and registers
// it with the provided registry.
func NewAnalysisMetrics(registry *prometheus.Registry) (*AnalysisMetrics, error) {
	m := &AnalysisMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register analysis metrics: %w", err)
	}
	return m, nil
}

func (m *AnalysisMetrics) initMetrics() {
	m.SpectraAnalyzed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysis_spectra_total",
			Help: "Total number of spectra analyzed, partitioned by outcome.",
		},
		[]string{"status"},
	)

	m.Identifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysis_identifications_total",
			Help: "Total number of nuclide identifications, partitioned by nuclide name.",
		},
		[]string{"nuclide"},
	)

	m.ChainDetections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysis_chain_detections_total",
			Help: "Total number of decay chain detections, partitioned by chain and confidence level.",
		},
		[]string{"chain", "level"},
	)

	m.SpectrumResizes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "analysis_spectrum_resizes_total",
		Help: "Total number of spectra padded or truncated to the configured channel count.",
	})

	m.CacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "analysis_cache_hits_total",
		Help: "Total number of analysis results served from the cache.",
	})

	m.CacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "analysis_cache_misses_total",
		Help: "Total number of analysis requests that missed the cache.",
	})

	m.AnalysisDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "analysis_duration_seconds",
		Help:    "Time taken for a full spectrum analysis",
		Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount10),
	})

	m.PeaksPerSpectrum = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "analysis_peaks_per_spectrum",
		Help:    "Number of peaks detected per analyzed spectrum",
		Buckets: prometheus.LinearBuckets(0, 2, 11),
	})
}

// RecordAnalysis counts one completed analysis with the given outcome status.
func (m *AnalysisMetrics) RecordAnalysis(status string) {
	m.SpectraAnalyzed.WithLabelValues(status).Inc()
}

// RecordIdentification counts one nuclide identification.
func (m *AnalysisMetrics) RecordIdentification(nuclide string) {
	m.Identifications.WithLabelValues(nuclide).Inc()
}

// RecordChainDetection counts one decay chain detection at a confidence level.
func (m *AnalysisMetrics) RecordChainDetection(chain, level string) {
	m.ChainDetections.WithLabelValues(chain, level).Inc()
}

// RecordSpectrumResize counts one spectrum recovered by padding or truncation.
func (m *AnalysisMetrics) RecordSpectrumResize() {
	m.SpectrumResizes.Inc()
}

// RecordCacheHit counts one analysis served from the cache.
func (m *AnalysisMetrics) RecordCacheHit() {
	m.CacheHits.Inc()
}

// RecordCacheMiss counts one analysis that had to be computed.
func (m *AnalysisMetrics) RecordCacheMiss() {
	m.CacheMisses.Inc()
}

// ObserveAnalysisDuration records the wall time of one full analysis.
func (m *AnalysisMetrics) ObserveAnalysisDuration(seconds float64) {
	m.AnalysisDuration.Observe(seconds)
}

// ObservePeakCount records how many peaks one spectrum produced.
func (m *AnalysisMetrics) ObservePeakCount(count int) {
	m.PeaksPerSpectrum.Observe(float64(count))
}

// Collect implements the prometheus.Collector interface.
func (m *AnalysisMetrics) Collect(ch chan<- prometheus.Metric) {
	m.SpectraAnalyzed.Collect(ch)
	m.Identifications.Collect(ch)
	m.ChainDetections.Collect(ch)
	ch <- m.SpectrumResizes
	ch <- m.CacheHits
	ch <- m.CacheMisses
	ch <- m.AnalysisDuration
	ch <- m.PeaksPerSpectrum
}

// Describe implements the prometheus.Collector interface.
func (m *AnalysisMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.SpectraAnalyzed.Describe(ch)
	m.Identifications.Describe(ch)
	m.ChainDetections.Describe(ch)
	ch <- m.SpectrumResizes.Desc()
	ch <- m.CacheHits.Desc()
	ch <- m.CacheMisses.Desc()
	ch <- m.AnalysisDuration.Desc()
	ch <- m.PeaksPerSpectrum.Desc()
}
