package analyze

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tkarvo/gammalyze/internal/analysis"
	"github.com/tkarvo/gammalyze/internal/conf"
)

// Command creates the analyze command for one-shot spectrum file analysis.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze [spectrum file]",
		Short: "Analyze a gamma spectrum file",
		Long: "Run background estimation, peak detection and nuclide identification " +
			"on a single spectrum file. JSON documents may carry their own calibration " +
			"and mode; plain text files are read as one channel count per line.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings.Input.Path = args[0]
			return analysis.FileAnalysis(settings)
		},
	}

	// Set up flags specific to the 'analyze' command
	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the analyze command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVarP(&settings.Input.Format, "format", "f", viper.GetString("input.format"), "Output format, table or json")
	cmd.Flags().StringVarP(&settings.Input.Output, "output", "o", "", "Write the JSON result document to this file")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %v", err)
	}

	return nil
}
