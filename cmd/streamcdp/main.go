// Package main provides the entry point for the streamcdp CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/streamcdp/cmd/streamcdp/commands"
	"github.com/Sumatoshi-tech/streamcdp/pkg/version"
)

var (
	verbose bool
	quiet   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "streamcdp",
		Short: "streamcdp - streaming customer data platform core",
		Long: `streamcdp ingests identify/track/alias events, resolves identities,
maintains live profiles with rolling counters, and evaluates segment
membership in real time.

Commands:
  serve     Run the ingest server
  gen       Generate synthetic traffic against a running server
  top       Show the most recently active profiles
  report    Render an HTML activity report
  config    Print the effective configuration`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress output")

	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewGenCommand())
	rootCmd.AddCommand(commands.NewTopCommand())
	rootCmd.AddCommand(commands.NewReportCommand())
	rootCmd.AddCommand(commands.NewConfigCommand())
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "streamcdp %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}
