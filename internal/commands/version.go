package commands

import (
	"fmt"
	goruntime "runtime"

	"github.com/spf13/cobra"
)

// Set with -ldflags "-X FinCast/internal/commands.Version=..."
var (
	Version = "dev"
	Commit  = "none"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "fincast %s (%s) %s %s/%s\n",
			Version, Commit, goruntime.Version(), goruntime.GOOS, goruntime.GOARCH)
	},
}

func init() {
	rootCmd.Version = Version
	rootCmd.AddCommand(versionCmd)
}
