package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tkarvo/gammalyze/cmd/analyze"
	"github.com/tkarvo/gammalyze/cmd/benchmark"
	"github.com/tkarvo/gammalyze/cmd/nuclides"
	"github.com/tkarvo/gammalyze/cmd/predict"
	"github.com/tkarvo/gammalyze/cmd/serve"
	"github.com/tkarvo/gammalyze/cmd/support"
	"github.com/tkarvo/gammalyze/internal/buildinfo"
	"github.com/tkarvo/gammalyze/internal/conf"
	"github.com/tkarvo/gammalyze/internal/logging"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "gammalyze",
		Short:   "Gamma spectrum analysis and nuclide identification",
		Version: build.GetVersion(),
	}

	// Set up the global flags for the root command.
	setupFlags(rootCmd, settings)

	subcommands := []*cobra.Command{
		analyze.Command(settings),
		serve.Command(settings, build),
		predict.Command(settings),
		nuclides.Command(settings),
		support.Command(settings, build),
		benchmark.Command(settings),
	}

	rootCmd.AddCommand(subcommands...)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if settings.Debug {
			logging.SetLevel(slog.LevelDebug)
		}

		// Flags write straight into the settings struct, so values from the
		// command line get the same validation as the config file.
		return conf.ValidateSettings(settings)
	}

	return rootCmd
}

// setupFlags defines flags that apply to every subcommand. Defaults come from
// viper so the config file and environment stay authoritative unless a flag
// is passed explicitly.
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().StringVarP(&settings.Analysis.Mode, "mode", "m", viper.GetString("analysis.mode"), "Matching profile, strict or robust")
	rootCmd.PersistentFlags().StringVar(&settings.Registry.UserFile, "registry", viper.GetString("registry.userfile"), "User nuclide definitions merged over the built-in registry")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %v", err)
	}

	return nil
}
