package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/7c/schedprobe/internal/display"
	"github.com/7c/schedprobe/internal/metrics"
	"github.com/7c/schedprobe/internal/outfile"
	"github.com/7c/schedprobe/internal/sampler"
	"github.com/7c/schedprobe/internal/sched"
	"github.com/7c/schedprobe/internal/telemetry"
)

var (
	watchInterval time.Duration
	watchStdout   bool
	watchNoReport bool
	watchCount    int
)

var watchCmd = &cobra.Command{
	Use:   "watch [rows] [short|long]",
	Short: "Sample repeatedly and append every table to the report file",
	Long: `Poll the scheduler statistics of every process until interrupted.

The report file (pid_sched_data.txt by default) is truncated at start
and every cycle appends its table to it. With the short format the
table is also printed to the console; use --stdout to print long
tables too. A failed cycle is logged and polling continues.

When configured, Prometheus metrics are served and every cycle is sent
to Telegraf over UDP.`,
	Example: `  # Poll every 2s, 10 rows, short labels
  schedprobe watch

  # Poll every 500ms with long labels, 20 rows
  schedprobe watch 20 long -i 500ms

  # Five cycles, no report file
  schedprobe watch --count 5 --no-report

  # Stream one JSON object per cycle
  schedprobe watch --json`,
	Args: cobra.MaximumNArgs(2),
	Run:  runWatch,
}

func init() {
	f := watchCmd.Flags()
	f.DurationVarP(&watchInterval, "interval", "i", 0, "polling interval (default from config, 2s)")
	f.BoolVar(&watchStdout, "stdout", false, "print tables to the console for the long format too")
	f.BoolVar(&watchNoReport, "no-report", false, "do not write the report file")
	f.IntVarP(&watchCount, "count", "c", 0, "stop after N cycles (0 = until interrupted)")
}

func runWatch(cmd *cobra.Command, args []string) {
	rt, err := loadRuntime(true)
	if err != nil {
		outputError(err.Error())
	}
	defer rt.close()

	rows, naming, err := parsePositional(args, rt.cfg.Rows, rt.cfg.Naming)
	if err != nil {
		outputError(err.Error())
	}
	interval := rt.cfg.Interval
	if watchInterval > 0 {
		interval = watchInterval
	}
	if watchCount < 0 {
		outputError(fmt.Sprintf("--count must be >= 0 (got: %d)", watchCount))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w := &watcher{rows: rows, naming: naming, logger: rt.logger, json: jsonOutput}
	if naming == sched.NamingShort || watchStdout || jsonOutput {
		w.console = os.Stdout
	}

	var obs sampler.Observer
	if rt.cfg.MetricsEnabled {
		probe := metrics.New(nil)
		obs = probe
		srv := serveMetrics(rt.cfg.MetricsListen, rt.cfg.MetricsPath, probe, rt.logger)
		defer shutdown(srv)
	}
	if w.sampler, err = rt.sampler(obs); err != nil {
		outputError(err.Error())
	}

	if rt.cfg.TelegrafEnabled {
		em, err := telemetry.NewTelegrafEmitter(rt.cfg.TelegrafAddr, rt.cfg.TelegrafMeas)
		if err != nil {
			outputError(err.Error())
		}
		defer em.Close()
		w.emitter = em
	}

	if rt.cfg.ReportEnabled && !watchNoReport {
		rep, err := outfile.Open(rt.cfg.ReportPath, outfile.Options{
			MaxSize:  rt.cfg.ReportMaxSize,
			MaxFiles: rt.cfg.ReportMaxFiles,
			Truncate: true,
		})
		if err != nil {
			outputError(fmt.Sprintf("open report file: %v", err))
		}
		defer rep.Close()
		w.report = rep
		if !jsonOutput {
			fmt.Fprintf(os.Stderr, "Writing results to %s\n", display.Bold(rep.Path()))
		}
	}

	w.run(ctx, interval, watchCount)
}

// watcher runs the polling loop. console and report are optional.
type watcher struct {
	sampler *sampler.Sampler
	rows    int
	naming  sched.Naming
	json    bool
	console io.Writer
	report  *outfile.File
	emitter *telemetry.TelegrafEmitter
	logger  *slog.Logger
}

// run samples immediately and then on every tick until ctx is done or
// count cycles completed.
func (w *watcher) run(ctx context.Context, interval time.Duration, count int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for n := 1; ; n++ {
		w.cycle(ctx)
		if count > 0 && n >= count {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// cycle performs one sample and fans the result out. Errors never stop the loop.
func (w *watcher) cycle(ctx context.Context) {
	res, err := w.sampler.Sample(ctx)
	if err != nil {
		if ctx.Err() == nil && w.console != nil && !w.json {
			fmt.Fprintf(os.Stderr, "%s %s\n", display.Red("Error:"), err)
		}
		return
	}
	w.publish(res)
}

// publish fans one cycle out to every configured output.
func (w *watcher) publish(res *sampler.Result) {
	rows := min(w.rows, res.Table.Len())

	if w.console != nil {
		if w.json {
			data, err := json.Marshal(newSampleJSON(res, w.naming, rows))
			if err != nil {
				w.logger.Error("encode sample failed", "error", err)
			} else {
				fmt.Fprintln(w.console, string(data))
			}
		} else {
			fmt.Fprintln(w.console, display.Dim(fmt.Sprintf("schedprobe watch  %s  %d/%d processes",
				res.Started.Format("15:04:05"), rows, res.Table.Len())))
			display.RenderSample(w.console, res.Table, display.SampleOptions{Naming: w.naming, Rows: rows})
			fmt.Fprintln(w.console)
		}
	}

	if w.report != nil {
		var buf bytes.Buffer
		display.RenderSample(&buf, res.Table, display.SampleOptions{Naming: w.naming, Rows: rows, Plain: true})
		if err := w.report.WriteSample(res.Started, rows, buf.Bytes()); err != nil {
			w.logger.Error("report write failed", "path", w.report.Path(), "error", err)
		}
	}

	w.emitter.Emit(res)
}

func serveMetrics(addr, path string, probe *metrics.Probe, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(path, probe.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("metrics server listening", "addr", addr, "path", path)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "error", err)
		}
	}()
	return srv
}

func shutdown(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	srv.Shutdown(ctx)
}
