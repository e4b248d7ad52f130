package analysis

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/tkarvo/gammalyze/internal/conf"
	"github.com/tkarvo/gammalyze/internal/errors"
	"github.com/tkarvo/gammalyze/internal/nuclide"
)

// FileAnalysis runs the full pipeline on a single spectrum file and renders
// the result to stdout. It is the backend of the analyze command.
func FileAnalysis(settings *conf.Settings) error {
	doc, err := ReadSpectrumFile(settings.Input.Path)
	if err != nil {
		return err
	}

	registry, err := nuclide.Load(settings.Registry.UserFile)
	if err != nil {
		return err
	}

	engine, err := New(settings, registry, nil)
	if err != nil {
		return err
	}

	result, err := engine.Analyze(context.Background(), doc.Counts, doc.Cal(), Options{Mode: doc.Mode})
	if err != nil {
		return err
	}

	if settings.Input.Output != "" {
		if err := writeResultFile(settings.Input.Output, result); err != nil {
			return err
		}
	}

	return RenderResult(os.Stdout, result, settings.Input.Format)
}

// ReadSpectrumFile loads a spectrum document from disk. A .json file carries
// the full document with optional calibration and mode. Anything else is
// parsed as numeric text, one channel per line, either a bare count or a
// "channel count" / "channel,count" pair where the last column is the count.
func ReadSpectrumFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.New(err).
			Component("analysis").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".json") {
		return readJSONDocument(f, path)
	}
	return readCountsFile(f, path)
}

func readJSONDocument(r io.Reader, path string) (*Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errors.New(err).
			Component("analysis").
			Category(errors.CategoryValidation).
			Context("path", path).
			Build()
	}
	if len(doc.Counts) == 0 {
		return nil, errors.Newf("document has no counts").
			Component("analysis").
			Category(errors.CategoryValidation).
			Context("path", path).
			Build()
	}
	return &doc, nil
}

func readCountsFile(r io.Reader, path string) (*Document, error) {
	var counts []int
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.FieldsFunc(line, func(r rune) bool {
			return r == ',' || r == ';' || r == ' ' || r == '\t'
		})
		if len(fields) == 0 {
			continue
		}
		// Last column is the count so both bare counts and channel,count
		// exports parse the same way.
		raw := fields[len(fields)-1]
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, errors.Newf("line %d: %q is not a number", lineNo, raw).
				Component("analysis").
				Category(errors.CategoryValidation).
				Context("path", path).
				Build()
		}
		counts = append(counts, int(math.Round(v)))
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.New(err).
			Component("analysis").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	if len(counts) == 0 {
		return nil, errors.Newf("file has no channel counts").
			Component("analysis").
			Category(errors.CategoryValidation).
			Context("path", path).
			Build()
	}
	return &Document{Counts: counts}, nil
}

// RenderResult writes the result in the requested format. An empty format
// selects the human-readable table.
func RenderResult(w io.Writer, result *Result, format string) error {
	switch format {
	case "", "table":
		renderTable(w, result)
		return nil
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	default:
		return errors.Newf("unknown output format %q, expected table or json", format).
			Component("analysis").
			Category(errors.CategoryValidation).
			Build()
	}
}

func renderTable(w io.Writer, result *Result) {
	fmt.Fprintf(w, "Analysis %s, %s mode, %.1f ms\n", result.ID, result.Mode, result.DurationMs)

	fmt.Fprintf(w, "\nPeaks (%d)\n", len(result.Peaks))
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "  CHANNEL\tENERGY keV\tCOUNTS\tPROMINENCE")
	for i := range result.Peaks {
		p := &result.Peaks[i]
		fmt.Fprintf(tw, "  %d\t%.1f\t%.0f\t%.0f\n", p.Channel, p.EnergyKeV, p.Counts, p.Prominence)
	}
	tw.Flush()

	fmt.Fprintf(w, "\nCandidates (%d)\n", len(result.Candidates))
	tw = tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "  NUCLIDE\tCONFIDENCE\tLINES\tNOTE")
	for i := range result.Candidates {
		c := &result.Candidates[i]
		note := ""
		if c.Suppressed {
			note = "suppressed, " + c.SuppressionReason
		}
		fmt.Fprintf(tw, "  %s\t%.1f%%\t%d/%d\t%s\n",
			c.Name, c.Confidence, len(c.MatchedLines), c.TotalLines, note)
	}
	tw.Flush()

	if len(result.Chains) > 0 {
		fmt.Fprintf(w, "\nDecay chains (%d)\n", len(result.Chains))
		tw = tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
		fmt.Fprintln(tw, "  CHAIN\tLEVEL\tMEMBERS\tWEIGHTED")
		for i := range result.Chains {
			ch := &result.Chains[i]
			fmt.Fprintf(tw, "  %s\t%s\t%d\t%.2f\n",
				ch.Name, ch.Level, len(ch.DetectedMembers), ch.WeightedConfidence)
		}
		tw.Flush()
	}
}

func writeResultFile(path string, result *Result) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return errors.New(err).
			Component("analysis").
			Category(errors.CategoryValidation).
			Build()
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.New(err).
			Component("analysis").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	return nil
}
