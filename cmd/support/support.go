package support

import (
	"github.com/spf13/cobra"

	"github.com/tkarvo/gammalyze/internal/buildinfo"
	"github.com/tkarvo/gammalyze/internal/conf"
)

// Command creates the support parent command
func Command(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	supportCmd := &cobra.Command{
		Use:   "support",
		Short: "Support and troubleshooting operations",
	}

	// Add subcommands here
	supportCmd.AddCommand(CollectCommand(build))

	return supportCmd
}
