package main

import (
	"fmt"

	"github.com/harunnryd/ouvidoria/internal/daemon/components"

	"github.com/spf13/cobra"
)

// version is set with -ldflags "-X main.version=..."
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	// No config needed.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "ouvidoria", version)
	},
}

func init() {
	components.Version = version
	rootCmd.AddCommand(versionCmd)
}
