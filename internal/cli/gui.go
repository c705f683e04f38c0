package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/7c/schedprobe/internal/gui"
)

var guiRefreshRate time.Duration

var guiCmd = &cobra.Command{
	Use:   "gui",
	Short: "Launch interactive terminal UI",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		// Logs would corrupt the alternate screen unless they go to a file.
		rt, err := loadRuntime(false)
		if err != nil {
			outputError(err.Error())
		}
		defer rt.close()

		s, err := rt.sampler(nil)
		if err != nil {
			outputError(err.Error())
		}
		rate := rt.cfg.Interval
		if guiRefreshRate > 0 {
			rate = guiRefreshRate
		}
		if err := gui.Run(s, rate, rt.cfg.Naming); err != nil {
			outputError(err.Error())
		}
	},
}

func init() {
	guiCmd.Flags().DurationVar(&guiRefreshRate, "refresh", 0, "refresh interval (default from config, 2s)")
}
