package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is stamped at build time with -ldflags.
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print the navctl version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("NAV", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
