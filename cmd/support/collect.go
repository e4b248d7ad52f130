package support

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tkarvo/gammalyze/internal/buildinfo"
	"github.com/tkarvo/gammalyze/internal/conf"
	"github.com/tkarvo/gammalyze/internal/support"
)

// CollectCommand creates the support data collection subcommand
func CollectCommand(build *buildinfo.Context) *cobra.Command {
	var logDays int
	var includeConfig bool

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Collect system diagnostics for troubleshooting",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("Collecting support data...")

			// Get config directory
			configPaths, err := conf.GetDefaultConfigPaths()
			if err != nil || len(configPaths) == 0 {
				configPaths = []string{"."}
			}

			collector := support.NewCollector(
				configPaths[0], // config directory
				".",            // data directory
				build.GetSystemID(),
				build.GetVersion(),
			)

			opts := support.DefaultCollectorOptions()
			opts.IncludeConfig = includeConfig
			opts.LogDuration = time.Duration(logDays) * 24 * time.Hour

			ctx := context.Background()
			dump, err := collector.Collect(ctx, opts)
			if err != nil {
				return fmt.Errorf("error collecting support data: %w", err)
			}

			archiveData, err := collector.CreateArchive(ctx, dump)
			if err != nil {
				return fmt.Errorf("error creating archive: %w", err)
			}

			filename := fmt.Sprintf("gammalyze-support-%s.zip", dump.ID)
			if err := os.WriteFile(filename, archiveData, 0o600); err != nil {
				return fmt.Errorf("error saving archive: %w", err)
			}

			fmt.Printf("Support data collected and saved to: %s\n", filename)
			return nil
		},
	}

	cmd.Flags().IntVar(&logDays, "log-days", 14, "Days of logs to include")
	cmd.Flags().BoolVar(&includeConfig, "config", true, "Include the scrubbed configuration")

	return cmd
}
