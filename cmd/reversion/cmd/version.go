package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/reversion/strategies"
)

const version = "0.3.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  `Display the current version of the reversion CLI and the built-in strategies.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("reversion version %s\n", version)
		fmt.Printf("strategies: %v\n", strategies.Names())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
