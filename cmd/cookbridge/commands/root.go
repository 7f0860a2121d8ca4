package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	verbose    bool
	jsonOutput bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cookbridge",
		Short: "cookbridge - drive procedural asset cooks from the command line",
		Long: `cookbridge connects to an engine server, loads asset libraries, instantiates
and cooks assets, and reads back what the engine produced.

The engine server runs as a local process, on a remote host over SSH, or in
process against a scene file for development. Settings come from --config,
COOKBRIDGE_CONFIG, or built-in defaults; COOKBRIDGE_* variables override the
connection settings and may be kept in a .env file.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "settings file path (.yaml or .cue)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newCookCommand())
	rootCmd.AddCommand(newStatusCommand())
	rootCmd.AddCommand(newCookLogCommand())
	rootCmd.AddCommand(newAttrsCommand())
	rootCmd.AddCommand(newSocketsCommand())
	rootCmd.AddCommand(newSanitizeCommand())
	rootCmd.AddCommand(newHistoryCommand())
	rootCmd.AddCommand(newServeMetricsCommand())
	rootCmd.AddCommand(newValidateCommand())

	return rootCmd
}
