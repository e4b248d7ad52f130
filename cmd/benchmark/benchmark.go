package benchmark

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/spf13/cobra"

	"github.com/tkarvo/gammalyze/internal/analysis"
	"github.com/tkarvo/gammalyze/internal/conf"
	"github.com/tkarvo/gammalyze/internal/nuclide"
	"github.com/tkarvo/gammalyze/internal/spectrum"
)

// seconds holds the per-profile duration flag value
var seconds int

func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "benchmark",
		Short: "Run analysis pipeline benchmark",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Validate duration
			if seconds < 1 || seconds > 300 {
				return fmt.Errorf("duration must be between 1 and 300 seconds, got %d", seconds)
			}
			return runBenchmark(settings, time.Duration(seconds)*time.Second)
		},
	}

	cmd.Flags().IntVarP(&seconds, "duration", "t", 10, "benchmark duration per profile in seconds (1-300)")

	return cmd
}

func runBenchmark(settings *conf.Settings, perProfile time.Duration) error {
	var strictResults, robustResults benchmarkResults

	fmt.Println("🔬 Testing strict profile:")
	if err := runAnalysisBenchmark(settings, "strict", &strictResults, perProfile); err != nil {
		return fmt.Errorf("❌ strict profile benchmark failed: %w", err)
	}

	fmt.Println("\n🔭 Testing robust profile:")
	if err := runAnalysisBenchmark(settings, "robust", &robustResults, perProfile); err != nil {
		return fmt.Errorf("❌ robust profile benchmark failed: %w", err)
	}

	// Show detailed performance comparison
	fmt.Printf("\nResults:\n")
	fmt.Printf("Profile   Analysis Time   Throughput\n")
	fmt.Printf("────────  ──────────────  ──────────────────────\n")
	fmt.Printf("Strict    %8.2f ms     %8.1f analyses/sec\n",
		strictResults.avgTimeMs, strictResults.analysesPerSecond)
	fmt.Printf("Robust    %8.2f ms     %8.1f analyses/sec\n",
		robustResults.avgTimeMs, robustResults.analysesPerSecond)
	fmt.Printf("────────  ──────────────  ──────────────────────\n")

	rating, description := getPerformanceRating(strictResults.avgTimeMs)
	fmt.Printf("\nSystem Rating: %s, %s\n", rating, description)

	return nil
}

// benchmarkResults stores benchmark metrics
type benchmarkResults struct {
	totalAnalyses     int     // number of complete pipeline runs
	avgTimeMs         float64 // average time per analysis in ms
	analysesPerSecond float64 // throughput
}

func runAnalysisBenchmark(settings *conf.Settings, mode string, results *benchmarkResults, duration time.Duration) error {
	registry, err := nuclide.Load(settings.Registry.UserFile)
	if err != nil {
		return err
	}

	// Cache off so every iteration pays the full pipeline cost.
	bench := *settings
	bench.Analysis.Cache.Enabled = false
	bench.Analysis.Mode = mode

	engine, err := analysis.New(&bench, registry, nil)
	if err != nil {
		return err
	}

	counts := uraniumCounts(bench.Analysis.Channels)
	cal := spectrum.Calibration{Slope: 3.0, Intercept: 0}
	ctx := context.Background()

	fmt.Printf("⏳ Running benchmark for %v...\n", duration)

	startTime := time.Now()
	var totalAnalyses int
	var totalDuration time.Duration

	for time.Since(startTime) < duration {
		analysisStart := time.Now()

		if _, err := engine.Analyze(ctx, counts, cal, analysis.Options{Mode: mode}); err != nil {
			return fmt.Errorf("analysis failed: %w", err)
		}

		totalDuration += time.Since(analysisStart)
		totalAnalyses++

		// Update progress display
		if totalAnalyses%50 == 0 {
			avgTime := totalDuration / time.Duration(totalAnalyses)
			fmt.Printf("\r🔄 Analyses: \033[1;36m%d\033[0m, Average time: \033[1;33m%.2fms\033[0m",
				totalAnalyses, float64(avgTime.Microseconds())/1000)
		}
	}
	fmt.Println()

	if totalAnalyses == 0 {
		return fmt.Errorf("no analyses completed within %v", duration)
	}

	avg := totalDuration / time.Duration(totalAnalyses)
	results.totalAnalyses = totalAnalyses
	results.avgTimeMs = float64(avg.Microseconds()) / 1000
	results.analysesPerSecond = float64(totalAnalyses) / totalDuration.Seconds()

	return nil
}

// uraniumCounts builds a synthetic uranium-series spectrum: an exponentially
// falling continuum with the characteristic photopeaks overlaid, assuming
// 3 keV per channel. A multi-peak spectrum keeps the matcher and the chain
// analyzer honest about the cost of a realistic field measurement.
func uraniumCounts(channels int) []int {
	if channels <= 0 {
		channels = 1024
	}
	counts := make([]int, channels)
	for i := range counts {
		counts[i] = int(400 * math.Exp(-float64(i)/250))
	}

	peaks := []struct {
		channel int
		height  float64
	}{
		{21, 900},   // Th-234, 63.3 keV
		{31, 700},   // Th-234, 92.4 and 92.8 keV
		{62, 1200},  // Ra-226, 186.2 keV
		{81, 800},   // Pb-214, 242.0 keV
		{98, 1500},  // Pb-214, 295.2 keV
		{117, 2400}, // Pb-214, 351.9 keV
		{203, 3000}, // Bi-214, 609.3 keV
		{373, 1000}, // Bi-214, 1120.3 keV
		{588, 1100}, // Bi-214, 1764.5 keV
	}
	const sigma = 4.0
	for _, p := range peaks {
		for i := range counts {
			d := float64(i - p.channel)
			counts[i] += int(p.height * math.Exp(-d*d/(2*sigma*sigma)))
		}
	}
	return counts
}

// getPerformanceRating maps average strict-profile analysis time to a rating
func getPerformanceRating(avgTimeMs float64) (rating, description string) {
	switch {
	case avgTimeMs < 2:
		return "Excellent ⭐⭐⭐⭐⭐", "comfortable headroom for high-rate monitoring"
	case avgTimeMs < 10:
		return "Good ⭐⭐⭐⭐", "plenty for continuous portal monitoring"
	case avgTimeMs < 50:
		return "Adequate ⭐⭐⭐", "fine for periodic survey analysis"
	default:
		return "Slow ⭐⭐", "expect queueing under sustained load"
	}
}
