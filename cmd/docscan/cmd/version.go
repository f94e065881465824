package cmd

import (
	"fmt"

	"github.com/MeKo-Tech/docscan/internal/version"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "docscan version %s\n", version.String())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
