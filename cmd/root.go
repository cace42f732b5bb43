package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"receivables/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "receivables",
	Short: "Receivables CLI - accounts-receivable aging consolidation",
	Long: `Receivables CLI consolidates a yearly invoice ledger into a monthly
aging gold layer: outstanding debt per client split into aging buckets,
alerts for debt crossing three months overdue, monthly billing and the
month-over-month variance of every figure.

The ledger is read from a Google Sheets workbook (one worksheet per year)
or from a directory of yearly CSV exports.`,
	Version: version,
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.WithComponent("root")
		log.Debug().
			Str("version", version).
			Msg("Receivables CLI executed without subcommand")

		_ = cmd.Help()
	},
}

// Execute runs the root command. A failed command exits with status 1.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		logger.Fatal(err, "Command execution failed")
	}
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print version information")
}
