package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/7c/schedprobe/internal/config"
	"github.com/7c/schedprobe/internal/display"
)

var configValidate bool

var configShowCmd = &cobra.Command{
	Use:   "config",
	Short: "Show resolved configuration",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		result, err := config.Load(config.Home(), configFlag)
		if err != nil {
			outputError(err.Error())
		}
		resolved, warnings, err := config.Resolve(result.Config)
		if err != nil {
			outputError(err.Error())
		}
		if err := applyOverrides(resolved); err != nil {
			outputError(err.Error())
		}
		if _, err := resolved.Lister(); err != nil {
			outputError(err.Error())
		}

		if configValidate {
			for _, w := range warnings {
				fmt.Fprintf(os.Stderr, "WARNING: %s\n", w)
			}
			fmt.Println("Configuration valid")
			return
		}

		if jsonOutput {
			outputJSON(configJSON(result, resolved, warnings))
			return
		}

		configLine := "(none found, using defaults)"
		if result.Path != "" {
			configLine = fmt.Sprintf("%s (%s)", result.Path, result.Source)
		}
		fmt.Printf("Config file:  %s\n\n", configLine)

		fmt.Printf("%s\n", display.Bold("Sampling:"))
		fmt.Printf("  Rows:         %d\n", resolved.Rows)
		fmt.Printf("  Format:       %s\n", resolved.Naming)
		fmt.Printf("  Interval:     %s\n", resolved.Interval)
		fmt.Printf("  Proc root:    %s\n", resolved.ProcRoot)
		fmt.Printf("  Workers:      %d\n", resolved.Workers)
		fmt.Printf("  Align:        %s\n\n", resolved.Align)

		fmt.Printf("%s\n", display.Bold("Source:"))
		fmt.Printf("  Kind:         %s\n", resolved.SourceKind)
		if len(resolved.SourceCommand) > 0 {
			fmt.Printf("  Command:      %s\n", strings.Join(resolved.SourceCommand, " "))
		}
		if resolved.HeaderToken != "" {
			fmt.Printf("  Header token: %s\n", resolved.HeaderToken)
		}
		fmt.Println()

		fmt.Printf("%s\n", display.Bold("Report:"))
		if resolved.ReportEnabled {
			fmt.Printf("  Path:         %s\n", resolved.ReportPath)
			fmt.Printf("  Max size:     %s\n", formatBytes(resolved.ReportMaxSize))
			fmt.Printf("  Max files:    %d\n\n", resolved.ReportMaxFiles)
		} else {
			fmt.Printf("  Enabled:      no (disabled in config)\n\n")
		}

		fmt.Printf("%s\n", display.Bold("Logs:"))
		fmt.Printf("  Level:        %s\n", resolved.LogLevel)
		if resolved.LogFile != "" {
			fmt.Printf("  File:         %s\n", resolved.LogFile)
			fmt.Printf("  Max size:     %s\n\n", formatBytes(resolved.LogMaxSize))
		} else {
			fmt.Printf("  File:         %s\n\n", display.Dim("(stderr)"))
		}

		fmt.Printf("%s\n", display.Bold("Metrics:"))
		if resolved.MetricsEnabled {
			fmt.Printf("  Listen:       %s\n", resolved.MetricsListen)
			fmt.Printf("  Path:         %s\n\n", resolved.MetricsPath)
		} else {
			fmt.Printf("  Enabled:      no\n\n")
		}

		fmt.Printf("%s\n", display.Bold("Telemetry:"))
		if resolved.TelegrafEnabled && resolved.TelegrafAddr != nil {
			fmt.Printf("  Telegraf:     enabled\n")
			fmt.Printf("  UDP:          %s\n", resolved.TelegrafAddr.String())
			fmt.Printf("  Measurement:  %s\n", resolved.TelegrafMeas)
		} else {
			fmt.Printf("  Telegraf:     disabled\n")
		}

		for _, w := range warnings {
			fmt.Fprintf(os.Stderr, "\nWARNING: %s\n", w)
		}
	},
}

func init() {
	configShowCmd.Flags().BoolVar(&configValidate, "validate", false, "validate config only")
}

func configJSON(result *config.LoadResult, r *config.Resolved, warnings []string) map[string]any {
	out := map[string]any{
		"config_file": result.Path,
		"source":      result.Source,
		"rows":        r.Rows,
		"format":      r.Naming,
		"interval":    r.Interval.String(),
		"proc_root":   r.ProcRoot,
		"workers":     r.Workers,
		"align":       r.Align,
		"listing": map[string]any{
			"kind":         r.SourceKind,
			"command":      r.SourceCommand,
			"header_token": r.HeaderToken,
		},
		"log_level": r.LogLevel.String(),
		"log_file":  r.LogFile,
		"report":    nil,
		"metrics":   nil,
		"telegraf":  nil,
		"warnings":  warnings,
	}
	if r.ReportEnabled {
		out["report"] = map[string]any{
			"path":      r.ReportPath,
			"max_size":  r.ReportMaxSize,
			"max_files": r.ReportMaxFiles,
		}
	}
	if r.MetricsEnabled {
		out["metrics"] = map[string]any{"listen": r.MetricsListen, "path": r.MetricsPath}
	}
	if r.TelegrafEnabled && r.TelegrafAddr != nil {
		out["telegraf"] = map[string]any{"udp": r.TelegrafAddr.String(), "measurement": r.TelegrafMeas}
	}
	return out
}

func formatBytes(b int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)
	switch {
	case b >= GB:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(GB))
	case b >= MB:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(MB))
	case b >= KB:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(KB))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
