package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/drl3d/pkg/buildinfo"
)

// versionCommand prints build information.
func (c *CLI) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), appName+" "+buildinfo.String())
		},
	}
}
