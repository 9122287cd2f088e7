package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is overwritten by ldflags during build.
var Version = "v0.1.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	// Printing the version needs no config or session.
	PersistentPreRun: func(cmd *cobra.Command, args []string) {},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("cloudaudit version %s\n", Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
