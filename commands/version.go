package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maastricht-university/meeting-transcription/config"
)

// version is set at build time with -ldflags "-X .../commands.version=...".
var version = ""

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		d := config.Default()
		v := version
		if v == "" {
			v = d.Pipeline.Version
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", d.Pipeline.Name, v)
	},
}
