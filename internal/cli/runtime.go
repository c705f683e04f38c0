package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/7c/schedprobe/internal/config"
	"github.com/7c/schedprobe/internal/outfile"
	"github.com/7c/schedprobe/internal/sampler"
	"github.com/7c/schedprobe/internal/sched"
)

// runtime is the resolved configuration plus the logger built from it.
type runtime struct {
	load     *config.LoadResult
	cfg      *config.Resolved
	warnings []string
	logger   *slog.Logger
	logFile  *outfile.File
}

// loadRuntime loads the config file, applies global flag overrides and
// builds the logger. stderrOK is false for commands that own the terminal.
func loadRuntime(stderrOK bool) (*runtime, error) {
	load, err := config.Load(config.Home(), configFlag)
	if err != nil {
		return nil, err
	}
	cfg, warnings, err := config.Resolve(load.Config)
	if err != nil {
		return nil, err
	}
	if err := applyOverrides(cfg); err != nil {
		return nil, err
	}

	rt := &runtime{load: load, cfg: cfg, warnings: warnings}
	var w io.Writer = os.Stderr
	switch {
	case cfg.LogFile != "":
		f, err := outfile.Open(cfg.LogFile, outfile.Options{MaxSize: cfg.LogMaxSize})
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		rt.logFile = f
		w = f
	case !stderrOK:
		w = io.Discard
	}
	rt.logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: cfg.LogLevel}))
	for _, msg := range warnings {
		rt.logger.Warn("config", "warning", msg)
	}
	return rt, nil
}

// applyOverrides lets global flags win over the config file.
func applyOverrides(cfg *config.Resolved) error {
	if procRootFlag != "" {
		cfg.ProcRoot = procRootFlag
	}
	if sourceFlag != "" {
		cfg.SourceKind = sourceFlag
		cfg.SourceCommand = nil
		cfg.HeaderToken = ""
	}
	if workersFlag < 0 {
		return fmt.Errorf("--workers must be >= 0 (got: %d)", workersFlag)
	}
	if workersFlag > 0 {
		cfg.Workers = workersFlag
	}
	if alignFlag != "" {
		a, err := sched.ParseAlign(alignFlag)
		if err != nil {
			return err
		}
		cfg.Align = a
	}
	if logLevelFlag != "" {
		lvl, err := config.ParseLevel(logLevelFlag)
		if err != nil {
			return err
		}
		cfg.LogLevel = lvl
	}
	return nil
}

// sampler builds a Sampler from the resolved config.
func (rt *runtime) sampler(obs sampler.Observer) (*sampler.Sampler, error) {
	lister, err := rt.cfg.Lister()
	if err != nil {
		return nil, err
	}
	return &sampler.Sampler{
		Lister:   lister,
		ProcRoot: rt.cfg.ProcRoot,
		Workers:  rt.cfg.Workers,
		Align:    rt.cfg.Align,
		Logger:   rt.logger,
		Observer: obs,
	}, nil
}

func (rt *runtime) close() {
	if rt.logFile != nil {
		rt.logFile.Close()
	}
}

// parsePositional handles the optional [rows] [short|long] arguments,
// falling back to the config values.
func parsePositional(args []string, rows int, naming sched.Naming) (int, sched.Naming, error) {
	if len(args) > 0 {
		n, err := parseRows(args[0])
		if err != nil {
			return 0, "", err
		}
		rows = n
	}
	if len(args) > 1 {
		nm, err := sched.ParseNaming(args[1])
		if err != nil {
			return 0, "", fmt.Errorf("format must be short or long (got: %q)", args[1])
		}
		naming = nm
	}
	return rows, naming, nil
}

func parseRows(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("rows must be an integer (got: %q)", s)
	}
	if n < 1 {
		return 0, fmt.Errorf("rows must be at least 1 (got: %d)", n)
	}
	return n, nil
}
