package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/7c/schedprobe/internal/display"
	"github.com/7c/schedprobe/internal/sched"
)

var fieldsCmd = &cobra.Command{
	Use:   "fields",
	Short: "List the canonical columns with short and long labels",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if jsonOutput {
			outputJSON(sched.Fields)
			return
		}
		display.RenderFields(os.Stdout)
	},
}
