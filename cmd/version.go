package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sso-tools/sso-grabber/internal/version"
)

//nolint:gochecknoglobals // Cobra command requires a global definition for proper command-line parsing and execution.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(_ *cobra.Command, _ []string) {
		//nolint:forbidigo // Version output goes to stdout, not the logger.
		fmt.Println("sso-grabber", version.Full())
	},
}

//nolint:gochecknoinits // Cobra requires the init function to set up commands.
func init() {
	rootCmd.AddCommand(versionCmd)
}
