package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/prometheus/procfs"
	"github.com/spf13/cobra"

	"github.com/7c/schedprobe/internal/display"
	"github.com/7c/schedprobe/internal/procscan"
	"github.com/7c/schedprobe/internal/sched"
)

var pidRaw bool

var pidCmd = &cobra.Command{
	Use:   "pid <pid>",
	Short: "Inspect the scheduler file of one process",
	Long: `Parse /proc/<pid>/sched of a single process and list every field
it contains, including the ones outside the canonical columns, plus
the lines that were skipped and why.`,
	Example: `  schedprobe pid 1
  schedprobe pid $$ --raw
  schedprobe pid 1 --json`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		pid, err := strconv.Atoi(args[0])
		if err != nil || pid < 1 {
			outputError(fmt.Sprintf("invalid PID: %s", args[0]))
		}
		rt, err := loadRuntime(true)
		if err != nil {
			outputError(err.Error())
		}
		defer rt.close()

		path := procscan.SchedPath(rt.cfg.ProcRoot, pid)
		if pidRaw {
			data, err := os.ReadFile(path)
			if err != nil {
				outputError(err.Error())
			}
			os.Stdout.Write(data)
			return
		}

		res, err := sched.ParseFile(path)
		if err != nil {
			outputError(err.Error())
		}
		in := &display.Inspection{PID: pid, Comm: comm(rt.cfg.ProcRoot, pid), Path: path, Result: res}
		if jsonOutput {
			outputJSON(in)
			return
		}
		display.RenderInspection(os.Stdout, in)
	},
}

func init() {
	pidCmd.Flags().BoolVar(&pidRaw, "raw", false, "print the file as the kernel wrote it")
}

// comm returns the process name, or "" when it cannot be read.
func comm(root string, pid int) string {
	fs, err := procfs.NewFS(root)
	if err != nil {
		return ""
	}
	p, err := fs.Proc(pid)
	if err != nil {
		return ""
	}
	c, err := p.Comm()
	if err != nil {
		return ""
	}
	return c
}
