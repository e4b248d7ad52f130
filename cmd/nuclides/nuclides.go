package nuclides

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tkarvo/gammalyze/internal/conf"
	"github.com/tkarvo/gammalyze/internal/errors"
	"github.com/tkarvo/gammalyze/internal/nuclide"
)

// Command creates the nuclides command for inspecting the registry.
func Command(settings *conf.Settings) *cobra.Command {
	var showChains bool

	cmd := &cobra.Command{
		Use:   "nuclides [id]",
		Short: "List the nuclide registry",
		Long: "List every nuclide known to the registry, show one nuclide in " +
			"detail, or list the decay chains with --chains.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := nuclide.Load(settings.Registry.UserFile)
			if err != nil {
				return err
			}

			if showChains {
				listChains(os.Stdout, registry)
				return nil
			}
			if len(args) == 1 {
				return showNuclide(os.Stdout, registry, args[0])
			}
			listNuclides(os.Stdout, registry)
			return nil
		},
	}

	cmd.Flags().BoolVar(&showChains, "chains", false, "List decay chains instead of nuclides")

	return cmd
}

func listNuclides(w io.Writer, registry *nuclide.Registry) {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tHALF-LIFE\tLINES\tCHAIN")
	for _, n := range registry.Nuclides() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			n.ID, n.Name, formatHalfLife(n), len(n.Lines), n.Chain)
	}
	tw.Flush()
}

func listChains(w io.Writer, registry *nuclide.Registry) {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tMEMBERS\tWEIGHT\tSUPPRESSES")
	for _, c := range registry.Chains() {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.4g\t%v\n",
			c.ID, c.Name, len(c.Members), c.AbundanceWeight, c.Suppresses)
	}
	tw.Flush()
}

func showNuclide(w io.Writer, registry *nuclide.Registry, query string) error {
	n, ok := registry.Resolve(query)
	if !ok {
		return errors.Newf("unknown nuclide %q", query).
			Component("nuclides").
			Category(errors.CategoryNotFound).
			Build()
	}

	fmt.Fprintf(w, "%s (%s)\n", n.Name, n.ID)
	fmt.Fprintf(w, "  half-life: %s\n", formatHalfLife(n))
	if n.Weight > 0 && n.Weight != 1 {
		fmt.Fprintf(w, "  abundance weight: %.4g\n", n.Weight)
	}
	if n.Chain != "" {
		if c, ok := registry.Chain(n.Chain); ok {
			fmt.Fprintf(w, "  chain: %s (%s)\n", c.Name, c.ID)
		}
	}

	if len(n.Lines) > 0 {
		fmt.Fprintf(w, "\n  Gamma lines (%d)\n", len(n.Lines))
		tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
		fmt.Fprintln(tw, "    ENERGY keV\tINTENSITY")
		for _, l := range n.Lines {
			fmt.Fprintf(tw, "    %.1f\t%.4f\n", l.EnergyKeV, l.Intensity)
		}
		tw.Flush()
	} else {
		fmt.Fprintln(w, "  no gamma lines, not matchable against spectra")
	}

	if tail := registry.ChainTail(n.ID); len(tail) > 1 {
		fmt.Fprintf(w, "\n  Decay products\n")
		for _, d := range tail[1:] {
			fmt.Fprintf(w, "    %s (%s)\n", d.Name, formatHalfLife(d))
		}
	}

	return nil
}

// formatHalfLife renders a half-life in the most readable unit.
func formatHalfLife(n *nuclide.Nuclide) string {
	if n.Stable {
		return "stable"
	}
	s := n.HalfLifeSeconds
	if s <= 0 {
		return "unknown"
	}

	const (
		minute = 60.0
		hour   = 3600.0
		day    = 86400.0
		year   = 3.15576e7
	)
	switch {
	case s >= year:
		return fmt.Sprintf("%.4g y", s/year)
	case s >= day:
		return fmt.Sprintf("%.4g d", s/day)
	case s >= hour:
		return fmt.Sprintf("%.4g h", s/hour)
	case s >= minute:
		return fmt.Sprintf("%.4g min", s/minute)
	default:
		return fmt.Sprintf("%.4g s", s)
	}
}
