package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/7c/schedprobe/internal/procscan"
	"github.com/7c/schedprobe/internal/sched"
)

// Defaults applied when a key or section is absent.
const (
	DefaultRows       = 10
	DefaultInterval   = 2 * time.Second
	DefaultReportPath = "pid_sched_data.txt"
	DefaultListen     = "127.0.0.1:9477"
	DefaultMetrics    = "/metrics"
	DefaultMeas       = "schedprobe"
)

// Resolved holds the fully resolved, validated runtime configuration.
type Resolved struct {
	Rows     int
	Naming   sched.Naming
	Interval time.Duration
	ProcRoot string
	Workers  int
	Align    sched.Align

	SourceKind    string
	SourceCommand []string
	HeaderToken   string

	ReportEnabled  bool
	ReportPath     string
	ReportMaxSize  int64
	ReportMaxFiles int

	LogLevel   slog.Level
	LogFile    string
	LogMaxSize int64

	MetricsEnabled bool
	MetricsListen  string
	MetricsPath    string

	TelegrafEnabled bool
	TelegrafAddr    *net.UDPAddr
	TelegrafMeas    string
}

// Lister builds the process lister the config selects.
func (r *Resolved) Lister() (procscan.Lister, error) {
	return procscan.NewLister(r.SourceKind, r.SourceCommand, r.HeaderToken, r.ProcRoot)
}

// Resolve takes a raw Config (may be nil) and returns the validated runtime config.
func Resolve(cfg *Config) (*Resolved, []string, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	r := &Resolved{
		Rows:     DefaultRows,
		Naming:   sched.NamingShort,
		Interval: DefaultInterval,
		ProcRoot: procscan.DefaultProcRoot,
		Workers:  1,
		Align:    sched.AlignPosition,
		LogLevel: slog.LevelInfo,
	}
	var warnings []string

	// --- Top-level keys ---
	if cfg.Rows != nil {
		if *cfg.Rows < 1 {
			return nil, nil, fmt.Errorf("rows must be >= 1 (got: %d)", *cfg.Rows)
		}
		r.Rows = *cfg.Rows
	}
	if cfg.Format != "" {
		n, err := sched.ParseNaming(cfg.Format)
		if err != nil {
			return nil, nil, fmt.Errorf("format: %w", err)
		}
		r.Naming = n
	}
	if cfg.Interval != "" {
		d, err := time.ParseDuration(cfg.Interval)
		if err != nil {
			return nil, nil, fmt.Errorf("interval %q - expected a duration like \"2s\", \"500ms\"", cfg.Interval)
		}
		if d < 100*time.Millisecond {
			warnings = append(warnings, fmt.Sprintf("interval %s raised to 100ms", d))
			d = 100 * time.Millisecond
		}
		r.Interval = d
	}
	if cfg.ProcRoot != "" {
		r.ProcRoot = expandHome(cfg.ProcRoot)
	}
	if cfg.Workers < 0 {
		return nil, nil, fmt.Errorf("workers must be >= 0 (got: %d)", cfg.Workers)
	}
	if cfg.Workers > 0 {
		r.Workers = cfg.Workers
	}
	a, err := sched.ParseAlign(cfg.Align)
	if err != nil {
		return nil, nil, fmt.Errorf("align: %w", err)
	}
	r.Align = a

	// --- Source (absent/null = top) ---
	r.SourceKind = "top"
	if cfg.Source != nil && !isJSONNull(cfg.Source) {
		var src SourceConfig
		if err := json.Unmarshal(cfg.Source, &src); err != nil {
			return nil, nil, fmt.Errorf("source: %w", err)
		}
		if src.Kind != "" {
			r.SourceKind = src.Kind
		}
		r.SourceCommand = src.Command
		r.HeaderToken = src.HeaderToken
		if _, err := procscan.NewLister(r.SourceKind, r.SourceCommand, r.HeaderToken, r.ProcRoot); err != nil {
			return nil, nil, fmt.Errorf("source: %w", err)
		}
		if len(src.Command) > 0 && r.SourceKind != "command" {
			warnings = append(warnings, fmt.Sprintf("source.command ignored for kind %q", r.SourceKind))
		}
	}

	// --- Report (absent = defaults, null = disabled) ---
	if cfg.Report == nil {
		r.ReportEnabled = true
		r.ReportPath = DefaultReportPath
		r.ReportMaxSize = 10 * 1024 * 1024
		r.ReportMaxFiles = 3
	} else if isJSONNull(cfg.Report) {
		r.ReportEnabled = false
	} else {
		rep := ReportConfig{Path: DefaultReportPath, MaxSize: "10M", MaxFiles: 3}
		if err := json.Unmarshal(cfg.Report, &rep); err != nil {
			return nil, nil, fmt.Errorf("report: %w", err)
		}
		if rep.Path == "" {
			return nil, nil, fmt.Errorf("report.path must not be empty (use null to disable the report)")
		}
		maxSize, err := ParseSize(rep.MaxSize)
		if err != nil {
			return nil, nil, fmt.Errorf("report.max_size %q - expected format like \"1M\", \"500K\", \"10M\"", rep.MaxSize)
		}
		if rep.MaxFiles < 0 {
			return nil, nil, fmt.Errorf("report.max_files must be >= 0 (got: %d)", rep.MaxFiles)
		}
		r.ReportEnabled = true
		r.ReportPath = expandHome(rep.Path)
		r.ReportMaxSize = maxSize
		r.ReportMaxFiles = rep.MaxFiles
	}

	// --- Log (absent/null = info to stderr) ---
	if cfg.Log != nil && !isJSONNull(cfg.Log) {
		lc := LogConfig{Level: "info", MaxSize: "1M"}
		if err := json.Unmarshal(cfg.Log, &lc); err != nil {
			return nil, nil, fmt.Errorf("log: %w", err)
		}
		lvl, err := ParseLevel(lc.Level)
		if err != nil {
			return nil, nil, fmt.Errorf("log.level: %w", err)
		}
		maxSize, err := ParseSize(lc.MaxSize)
		if err != nil {
			return nil, nil, fmt.Errorf("log.max_size %q - expected format like \"1M\", \"500K\", \"10M\"", lc.MaxSize)
		}
		r.LogLevel = lvl
		r.LogFile = expandHome(lc.File)
		r.LogMaxSize = maxSize
	}

	// --- Metrics (absent/null = disabled) ---
	if cfg.Metrics != nil && !isJSONNull(cfg.Metrics) {
		mc := MetricsConfig{Listen: DefaultListen, Path: DefaultMetrics}
		if err := json.Unmarshal(cfg.Metrics, &mc); err != nil {
			return nil, nil, fmt.Errorf("metrics: %w", err)
		}
		if _, _, err := net.SplitHostPort(mc.Listen); err != nil {
			return nil, nil, fmt.Errorf("metrics.listen %q - expected \"host:port\"", mc.Listen)
		}
		if !strings.HasPrefix(mc.Path, "/") {
			return nil, nil, fmt.Errorf("metrics.path must start with \"/\" (got: %q)", mc.Path)
		}
		r.MetricsEnabled = true
		r.MetricsListen = mc.Listen
		r.MetricsPath = mc.Path
	}

	// --- Telemetry (absent/null = disabled) ---
	if cfg.Telemetry != nil && !isJSONNull(cfg.Telemetry) {
		var tel TelemetryConfig
		if err := json.Unmarshal(cfg.Telemetry, &tel); err != nil {
			return nil, nil, fmt.Errorf("telemetry: %w", err)
		}
		if tel.Telegraf != nil {
			if tel.Telegraf.UDP == "" {
				return nil, nil, fmt.Errorf("telemetry.telegraf.udp is required when telegraf is enabled")
			}
			addr, err := net.ResolveUDPAddr("udp", tel.Telegraf.UDP)
			if err != nil {
				return nil, nil, fmt.Errorf("telemetry.telegraf.udp %q - expected \"host:port\"", tel.Telegraf.UDP)
			}
			meas := tel.Telegraf.Measurement
			if meas == "" {
				meas = DefaultMeas
			}
			r.TelegrafEnabled = true
			r.TelegrafAddr = addr
			r.TelegrafMeas = meas
		}
	}

	return r, warnings, nil
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("unknown level %q (expected debug, info, warn or error)", s)
	}
	return lvl, nil
}

// ParseSize parses sizes like "500K", "10M", "1G". Empty means 1M.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToUpper(s))
	if s == "" {
		return 1048576, nil // default 1MB
	}
	var multiplier int64 = 1
	numStr := s
	switch {
	case strings.HasSuffix(s, "G"):
		multiplier = 1024 * 1024 * 1024
		numStr = s[:len(s)-1]
	case strings.HasSuffix(s, "M"):
		multiplier = 1024 * 1024
		numStr = s[:len(s)-1]
	case strings.HasSuffix(s, "K"):
		multiplier = 1024
		numStr = s[:len(s)-1]
	}
	n, err := strconv.ParseInt(numStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid size %q: negative", s)
	}
	return n * multiplier, nil
}

func expandHome(p string) string {
	if strings.HasPrefix(p, "~/") {
		if home, _ := os.UserHomeDir(); home != "" {
			return filepath.Join(home, p[2:])
		}
	}
	return p
}
