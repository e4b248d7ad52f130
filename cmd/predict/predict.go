package predict

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tkarvo/gammalyze/internal/conf"
	"github.com/tkarvo/gammalyze/internal/decay"
	"github.com/tkarvo/gammalyze/internal/errors"
	"github.com/tkarvo/gammalyze/internal/nuclide"
)

// options hold the one-shot prediction parameters. They are command line
// arguments, not configuration, so they stay out of the settings struct.
type options struct {
	activityBq float64
	duration   float64
	points     int
	logScale   bool
	format     string
}

// Command creates the predict command for decay chain activity curves.
func Command(settings *conf.Settings) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "predict [nuclide]",
		Short: "Predict decay chain activity over time",
		Long: "Evolve the activity of a nuclide and every downstream chain member " +
			"over a time grid using the closed-form Bateman solution. The nuclide " +
			"is given by id or name, for example ra226 or Ra-226.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPredict(settings, opts, args[0])
		},
	}

	cmd.Flags().Float64VarP(&opts.activityBq, "activity", "a", 1000, "Initial activity in Bq")
	cmd.Flags().Float64VarP(&opts.duration, "duration", "t", 3.156e7, "Prediction horizon in seconds, default one year")
	cmd.Flags().IntVarP(&opts.points, "points", "p", 50, "Number of time points")
	cmd.Flags().BoolVar(&opts.logScale, "log", false, "Space time points logarithmically")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "table", "Output format, table, csv or json")

	return cmd
}

func runPredict(settings *conf.Settings, opts *options, query string) error {
	registry, err := nuclide.Load(settings.Registry.UserFile)
	if err != nil {
		return err
	}

	n, ok := registry.Resolve(query)
	if !ok {
		return errors.Newf("unknown nuclide %q", query).
			Component("predict").
			Category(errors.CategoryNotFound).
			Build()
	}

	var times []float64
	if opts.logScale {
		times = decay.LogTimes(opts.duration, opts.points)
	} else {
		times = decay.LinearTimes(opts.duration, opts.points)
	}

	result, err := decay.NewPredictor(registry).Predict(n.ID, opts.activityBq, times)
	if err != nil {
		return err
	}

	if result.Degraded {
		fmt.Fprintln(os.Stderr, "warning: chain truncated at a member with unknown half-life")
	}

	switch opts.format {
	case "table":
		renderTable(os.Stdout, result)
		return nil
	case "csv":
		return renderCSV(os.Stdout, result)
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	default:
		return errors.Newf("unknown output format %q, expected table, csv or json", opts.format).
			Component("predict").
			Category(errors.CategoryValidation).
			Build()
	}
}

func renderTable(w io.Writer, result *decay.Result) {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', tabwriter.AlignRight)

	fmt.Fprint(tw, "TIME s")
	for i := range result.Series {
		fmt.Fprintf(tw, "\t%s Bq", result.Series[i].Name)
	}
	fmt.Fprintln(tw)

	for ti, t := range result.TimesSeconds {
		fmt.Fprintf(tw, "%.6g", t)
		for i := range result.Series {
			fmt.Fprintf(tw, "\t%.4g", result.Series[i].ActivitiesBq[ti])
		}
		fmt.Fprintln(tw)
	}
	tw.Flush()
}

func renderCSV(w io.Writer, result *decay.Result) error {
	cw := csv.NewWriter(w)

	header := make([]string, 0, len(result.Series)+1)
	header = append(header, "time_s")
	for i := range result.Series {
		header = append(header, string(result.Series[i].Nuclide))
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	row := make([]string, len(header))
	for ti, t := range result.TimesSeconds {
		row[0] = strconv.FormatFloat(t, 'g', -1, 64)
		for i := range result.Series {
			row[i+1] = strconv.FormatFloat(result.Series[i].ActivitiesBq[ti], 'g', -1, 64)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
