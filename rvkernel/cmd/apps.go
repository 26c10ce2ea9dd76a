package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sarchlab/rvkernel/apps"
)

var appsCmd = &cobra.Command{
	Use:   "apps",
	Short: "List the programs that can be run",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		listApps(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(appsCmd)
}

func listApps(w io.Writer) {
	for _, img := range apps.All() {
		fmt.Fprintf(w, "%-12s %5d bytes\n",
			img.Name, len(img.Program.Text)+len(img.Program.Data))
	}
}
