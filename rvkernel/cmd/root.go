// Package cmd provides the command-line interface for rvkernel.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "rvkernel",
	Short: "rvkernel runs user programs on a simulated RISC-V teaching kernel.",
	Long: `rvkernel runs user programs on a simulated RISC-V teaching kernel. ` +
		`It can run a built-in program (run), list the programs (apps), and ` +
		`summarize a recorded trace database (trace).`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
