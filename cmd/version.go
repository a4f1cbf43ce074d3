package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Build info, set from main via Execute.
var (
	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintf(ui.Out, "codeguardian %s (commit %s, built %s)\n", buildVersion, buildCommit, buildDate)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
