// Package analysis orchestrates the full spectrum analysis pipeline: input
// normalization, background estimation, peak detection, nuclide
// identification, and decay chain rating. Results are memoized by spectrum
// digest so repeated submissions of the same spectrum are served from cache.
package analysis

import (
	"context"
	"log/slog"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/google/uuid"
	"github.com/tkarvo/gammalyze/internal/conf"
	"github.com/tkarvo/gammalyze/internal/errors"
	"github.com/tkarvo/gammalyze/internal/identify"
	"github.com/tkarvo/gammalyze/internal/logging"
	"github.com/tkarvo/gammalyze/internal/nuclide"
	"github.com/tkarvo/gammalyze/internal/observability"
	"github.com/tkarvo/gammalyze/internal/observability/metrics"
	"github.com/tkarvo/gammalyze/internal/peaks"
	"github.com/tkarvo/gammalyze/internal/snip"
	"github.com/tkarvo/gammalyze/internal/spectrum"
)

// Options tune a single analysis call.
type Options struct {
	// Mode overrides the configured matching profile ("strict" or "robust")
	// for this call. Empty uses the configured default.
	Mode string
}

// Result is the complete outcome of one spectrum analysis.
type Result struct {
	ID            string                    `json:"id"`
	Mode          string                    `json:"mode"`
	Peaks         []peaks.Peak              `json:"peaks"`
	Candidates    []identify.Candidate      `json:"candidates"`
	RawCandidates []identify.Candidate      `json:"raw_candidates"`
	Chains        []identify.ChainCandidate `json:"chains"`
	Background    []float64                 `json:"background,omitempty"`
	NetCounts     []float64                 `json:"net_counts,omitempty"`
	Resized       bool                      `json:"resized,omitempty"`
	Cached        bool                      `json:"cached,omitempty"`
	DurationMs    float64                   `json:"duration_ms"`
	AnalyzedAt    time.Time                 `json:"analyzed_at"`
}

// Engine runs analyses against a loaded registry and the application
// settings. It is safe for concurrent use; identical spectra submitted
// concurrently share a single computation.
type Engine struct {
	settings *conf.Settings
	registry *nuclide.Registry
	detector *peaks.Detector
	metrics  *observability.Metrics
	logger   *slog.Logger
	cache    *gocache.Cache
	group    singleflight.Group
}

// New builds an engine from settings. The metrics instance may be nil, for
// example in the one-shot CLI path.
func New(settings *conf.Settings, registry *nuclide.Registry, m *observability.Metrics) (*Engine, error) {
	if _, err := identify.ParseMode(settings.Analysis.Mode); err != nil {
		return nil, err
	}

	logger := logging.ForService("analysis")
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		settings: settings,
		registry: registry,
		metrics:  m,
		logger:   logger.With("service", "analysis"),
		detector: peaks.New(peaks.Config{
			ProminenceFactor: settings.Analysis.Peaks.ProminenceFactor,
			HeightFactor:     settings.Analysis.Peaks.HeightFactor,
			Distance:         settings.Analysis.Peaks.Distance,
			MaxPeaks:         settings.Analysis.Peaks.MaxPeaks,
		}),
	}

	if settings.Analysis.Cache.Enabled {
		ttl := time.Duration(settings.Analysis.Cache.TTLSeconds) * time.Second
		e.cache = gocache.New(ttl, 2*ttl)
	}
	return e, nil
}

// Analyze runs the full pipeline on raw channel counts. A zero-valued
// calibration falls back to the configured default. Counts shorter or longer
// than the configured channel count are padded or truncated, not rejected.
func (e *Engine) Analyze(ctx context.Context, counts []int, cal spectrum.Calibration, opts Options) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mode := e.settings.Analysis.Mode
	if opts.Mode != "" {
		mode = opts.Mode
	}
	parsed, err := identify.ParseMode(mode)
	if err != nil {
		e.recordStatus(metrics.StatusError)
		return nil, err
	}

	spec, err := e.prepare(counts, cal)
	if err != nil {
		e.recordStatus(metrics.StatusError)
		return nil, err
	}

	key := spec.Digest() + ":" + string(parsed)
	if e.cache != nil {
		if hit, ok := e.cache.Get(key); ok {
			cached := *hit.(*Result)
			cached.Cached = true
			if e.metrics != nil {
				e.metrics.Analysis.RecordCacheHit()
			}
			e.recordStatus(metrics.StatusCached)
			return &cached, nil
		}
		if e.metrics != nil {
			e.metrics.Analysis.RecordCacheMiss()
		}
	}

	v, err, _ := e.group.Do(key, func() (any, error) {
		return e.analyze(ctx, spec, parsed)
	})
	if err != nil {
		e.recordStatus(metrics.StatusError)
		return nil, err
	}

	res := *v.(*Result)
	e.recordStatus(metrics.StatusOK)
	return &res, nil
}

// prepare applies the calibration fallback and conditions raw counts into a
// spectrum at the configured channel count.
func (e *Engine) prepare(counts []int, cal spectrum.Calibration) (*spectrum.Spectrum, error) {
	if cal.Slope == 0 && cal.Intercept == 0 {
		cal = spectrum.Calibration{
			Slope:     e.settings.Analysis.Calibration.Slope,
			Intercept: e.settings.Analysis.Calibration.Intercept,
		}
	}

	spec, err := spectrum.New(counts, cal, e.settings.Analysis.Channels)
	if err != nil {
		return nil, errors.New(err).
			Component("analysis").
			Category(errors.CategorySpectrum).
			Context("channels", len(counts)).
			Build()
	}
	if spec.Resized() {
		e.logger.Warn("spectrum resized to configured channel count",
			"original", spec.OriginalLen(),
			"channels", spec.Channels())
		if e.metrics != nil {
			e.metrics.Analysis.RecordSpectrumResize()
		}
	}
	return spec, nil
}

// DetectPeaks conditions raw counts and runs peak detection without the
// identification stages. Background handling follows the SNIP settings, so
// the detector sees the same series a full Analyze would feed it.
func (e *Engine) DetectPeaks(ctx context.Context, counts []int, cal spectrum.Calibration) ([]peaks.Peak, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	spec, err := e.prepare(counts, cal)
	if err != nil {
		return nil, err
	}

	analyzed := spec.CountsFloat()
	if e.settings.Analysis.SNIP.Enabled {
		analyzed = snip.Subtract(analyzed, e.settings.Analysis.SNIP.Iterations).NetCounts
	}
	return e.detector.Detect(analyzed, spec.Energies()), nil
}

// EstimateBackground returns the SNIP continuum and net counts for raw
// detector counts. The configured iteration count applies even when
// automatic subtraction is disabled for full analyses.
func (e *Engine) EstimateBackground(ctx context.Context, counts []int, cal spectrum.Calibration) (*snip.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	spec, err := e.prepare(counts, cal)
	if err != nil {
		return nil, err
	}

	sub := snip.Subtract(spec.CountsFloat(), e.settings.Analysis.SNIP.Iterations)
	return &sub, nil
}

// analyze is the uncached pipeline body.
func (e *Engine) analyze(ctx context.Context, spec *spectrum.Spectrum, mode identify.Mode) (*Result, error) {
	start := time.Now()

	counts := spec.CountsFloat()
	analyzed := counts
	var background, net []float64
	if e.settings.Analysis.SNIP.Enabled {
		sub := snip.Subtract(counts, e.settings.Analysis.SNIP.Iterations)
		background, net = sub.Background, sub.NetCounts
		analyzed = net
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	detected := e.detector.Detect(analyzed, spec.Energies())

	pipeline := identify.NewPipeline(e.registry, identify.MatcherConfig{
		Profile: identify.ProfileFor(mode),
		Dynamic: e.settings.Analysis.Resolution.Dynamic,
		Resolution: identify.Resolution{
			Base:         e.settings.Analysis.Resolution.Base,
			RefEnergyKeV: e.settings.Analysis.Resolution.RefEnergyKeV,
		},
	})
	out := pipeline.Run(detected)

	res := &Result{
		ID:            uuid.New().String(),
		Mode:          string(mode),
		Peaks:         detected,
		Candidates:    out.Candidates,
		RawCandidates: out.RawCandidates,
		Chains:        out.Chains,
		Background:    background,
		NetCounts:     net,
		Resized:       spec.Resized(),
		DurationMs:    float64(time.Since(start).Microseconds()) / 1000.0,
		AnalyzedAt:    time.Now().UTC(),
	}

	e.observe(res, time.Since(start))
	e.logger.Debug("analysis complete",
		"id", res.ID,
		"mode", res.Mode,
		"peaks", len(res.Peaks),
		"candidates", len(res.Candidates),
		"chains", len(res.Chains),
		"duration_ms", res.DurationMs)

	if e.cache != nil {
		e.cache.SetDefault(spec.Digest()+":"+string(mode), res)
	}
	return res, nil
}

func (e *Engine) observe(res *Result, elapsed time.Duration) {
	if e.metrics == nil {
		return
	}
	e.metrics.Analysis.ObserveAnalysisDuration(elapsed.Seconds())
	e.metrics.Analysis.ObservePeakCount(len(res.Peaks))
	for i := range res.Candidates {
		e.metrics.Analysis.RecordIdentification(res.Candidates[i].Name)
	}
	for i := range res.Chains {
		e.metrics.Analysis.RecordChainDetection(string(res.Chains[i].Chain), string(res.Chains[i].Level))
	}
}

func (e *Engine) recordStatus(status string) {
	if e.metrics != nil {
		e.metrics.Analysis.RecordAnalysis(status)
	}
}

// Registry exposes the engine's nuclide registry to API handlers.
func (e *Engine) Registry() *nuclide.Registry {
	return e.registry
}

// Settings exposes the engine's configuration.
func (e *Engine) Settings() *conf.Settings {
	return e.settings
}
