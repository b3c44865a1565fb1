// Package cmd is the command-line shell around the bulk element writer.
// Flag parsing, input framing, and driver wiring live here; none of it is
// part of the writer core (internal/bulkwriter), which never parses a
// flag or a byte of input framing itself.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/wegman-software/osm2pgsql-go/internal/logger"
)

var (
	verbose bool
	logFile string
)

var rootCmd = &cobra.Command{
	Use:   "osm2pgsql-go",
	Short: "Bulk element writer for OSM-style map databases",
	Long: `osm2pgsql-go streams nodes, ways, and relations and emits a
transactional bulk-copy SQL script against a database that keeps both a
current snapshot and a full history of every element.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if logFile != "" {
			logger.InitWithFile(verbose, logFile)
		} else {
			logger.Init(verbose)
		}
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Path to log file for persistent logging (JSON format)")
	rootCmd.AddCommand(writeCmd)
}
