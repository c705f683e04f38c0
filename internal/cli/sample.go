package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/7c/schedprobe/internal/display"
	"github.com/7c/schedprobe/internal/sampler"
	"github.com/7c/schedprobe/internal/sched"
)

var (
	sampleAll     bool
	sampleSummary bool
	samplePlain   bool
)

var sampleCmd = &cobra.Command{
	Use:   "sample [rows] [short|long]",
	Short: "Take one sample and print the table",
	Long: `Run one sampling cycle: enumerate processes, read each
/proc/<pid>/sched and print the first rows of the table.

rows defaults to the config value (10) and must be at least 1.
When fewer processes were sampled than requested, every sampled row
is shown. The format selects short (EXEC_ST) or long (se.exec_start)
column labels.`,
	Example: `  # First 10 processes, short labels
  schedprobe sample

  # First 25 processes with kernel field names
  schedprobe sample 25 long

  # Every process plus a diagnostics summary
  schedprobe sample --all --summary

  # JSON output
  schedprobe sample 5 --json`,
	Args: cobra.MaximumNArgs(2),
	Run:  runSample,
}

func init() {
	f := sampleCmd.Flags()
	f.BoolVar(&sampleAll, "all", false, "show every sampled process")
	f.BoolVar(&sampleSummary, "summary", false, "show diagnostic counts after the table")
	f.BoolVar(&samplePlain, "plain", false, "disable colors")
}

func runSample(cmd *cobra.Command, args []string) {
	rt, err := loadRuntime(true)
	if err != nil {
		outputError(err.Error())
	}
	defer rt.close()

	rows, naming, err := parsePositional(args, rt.cfg.Rows, rt.cfg.Naming)
	if err != nil {
		outputError(err.Error())
	}

	s, err := rt.sampler(nil)
	if err != nil {
		outputError(err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	res, err := s.Sample(ctx)
	if err != nil {
		outputError(err.Error())
	}

	if sampleAll {
		rows = 0
	} else if rows > res.Table.Len() {
		if !jsonOutput {
			fmt.Fprintf(os.Stderr, "%s requested %d rows but only %d processes are available\n",
				display.Yellow("Note:"), rows, res.Table.Len())
		}
		rows = res.Table.Len()
	}

	if jsonOutput {
		outputJSON(newSampleJSON(res, naming, rows))
		return
	}

	display.RenderSample(os.Stdout, res.Table, display.SampleOptions{
		Naming: naming,
		Rows:   rows,
		Plain:  samplePlain,
	})
	if sampleSummary {
		fmt.Printf("\n%d enumerated, %d resolved, %d sampled in %s\n",
			res.Enumerated, res.Resolved, res.Table.Len(), res.Duration.Round(time.Millisecond))
		display.RenderSummary(os.Stdout, res.Diagnostics.Counts())
	}
}

// sampleJSON is the --json shape of one cycle. Rows follow Columns order.
type sampleJSON struct {
	Timestamp   time.Time             `json:"timestamp"`
	Columns     []string              `json:"columns"`
	Rows        [][]string            `json:"rows"`
	Extra       map[int][]sched.Field `json:"extra,omitempty"`
	Enumerated  int                   `json:"enumerated"`
	Resolved    int                   `json:"resolved"`
	Sampled     int                   `json:"sampled"`
	Diagnostics map[string]int        `json:"diagnostics"`
}

func newSampleJSON(res *sampler.Result, naming sched.Naming, rows int) *sampleJSON {
	out := &sampleJSON{
		Timestamp:   res.Started,
		Columns:     sched.Header(naming),
		Rows:        [][]string{},
		Enumerated:  res.Enumerated,
		Resolved:    res.Resolved,
		Sampled:     res.Table.Len(),
		Diagnostics: map[string]int{},
	}
	for _, r := range res.Table.Head(rows).Rows {
		out.Rows = append(out.Rows, r.Values())
		if len(r.Extra) > 0 {
			if out.Extra == nil {
				out.Extra = map[int][]sched.Field{}
			}
			out.Extra[r.PID] = r.Extra
		}
	}
	for k, n := range res.Diagnostics.Counts() {
		out.Diagnostics[string(k)] = n
	}
	return out
}
