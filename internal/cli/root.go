package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/7c/schedprobe/internal/display"
)

// Version is set at build time via ldflags.
var Version = "dev"

var (
	// jsonOutput is the global flag for JSON output mode.
	jsonOutput bool
	configFlag string

	procRootFlag string
	sourceFlag   string
	workersFlag  int
	alignFlag    string
	logLevelFlag string
)

var rootCmd = &cobra.Command{
	Use:   "schedprobe",
	Short: display.CBold + "schedprobe" + display.CReset + " - per-process scheduler statistics from /proc/<pid>/sched",
	Long: `Sample the kernel's per-task scheduler statistics for every process
on the host and show them as one table: a PID column followed by the
20 canonical fields of /proc/<pid>/sched, in short or long naming.`,
}

// coloredHelpTemplate is the Cobra help template with ANSI colors.
var coloredHelpTemplate = `{{with .Long}}{{. | trimTrailingWhitespaces}}

{{end}}` +
	`{{if or .Runnable .HasSubCommands}}` + display.CYellow + `Usage:` + display.CReset + `{{end}}
{{if .Runnable}}  {{.UseLine}}{{end}}` +
	`{{if .HasAvailableSubCommands}}  {{.CommandPath}} [command]{{end}}

` +
	`{{if gt (len .Aliases) 0}}` + display.CYellow + `Aliases:` + display.CReset + `
  {{.NameAndAliases}}

{{end}}` +
	`{{if .HasExample}}` + display.CYellow + `Examples:` + display.CReset + `
{{.Example}}

{{end}}` +
	`{{if .HasAvailableSubCommands}}` + display.CYellow + `Available Commands:` + display.CReset + `{{range .Commands}}{{if (or .IsAvailableCommand (eq .Name "help"))}}
  ` + display.CCyan + `{{rpad .Name .NamePadding}}` + display.CReset + `  {{.Short}}{{end}}{{end}}

{{end}}` +
	`{{if .HasAvailableLocalFlags}}` + display.CYellow + `Flags:` + display.CReset + `
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}

{{end}}` +
	`{{if .HasAvailableInheritedFlags}}` + display.CYellow + `Global Flags:` + display.CReset + `
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}

{{end}}` +
	`{{if .HasAvailableSubCommands}}Use "{{.CommandPath}} [command] --help" for more information about a command.
{{end}}`

func init() {
	pf := rootCmd.PersistentFlags()
	pf.BoolVar(&jsonOutput, "json", false, "output in JSON format")
	pf.StringVar(&configFlag, "config", "", "config file (default: search $SCHEDPROBE_HOME, then /etc)")
	pf.StringVar(&procRootFlag, "proc-root", "", "procfs mount point (default /proc)")
	pf.StringVar(&sourceFlag, "source", "", "process listing source: top, ps or procfs")
	pf.IntVar(&workersFlag, "workers", 0, "parse scheduler files with N workers")
	pf.StringVar(&alignFlag, "align", "", "column alignment: position or key")
	pf.StringVar(&logLevelFlag, "log-level", "", "log level: debug, info, warn or error")

	rootCmd.SetHelpTemplate(coloredHelpTemplate)

	rootCmd.AddCommand(sampleCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(guiCmd)
	rootCmd.AddCommand(pidCmd)
	rootCmd.AddCommand(fieldsCmd)
	rootCmd.AddCommand(configShowCmd)
}

// Execute runs the root command.
func Execute() {
	rootCmd.Version = Version
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// --- helpers ---

func outputJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		outputError(err.Error())
	}
	fmt.Println(string(data))
}

// outputError prints an error message and exits. When jsonOutput is set, it
// writes a JSON object to stdout; otherwise it prints to stderr.
func outputError(msg string) {
	if jsonOutput {
		fmt.Printf("{\"error\":%q}\n", msg)
	} else {
		fmt.Fprintf(os.Stderr, "%s %s\n", display.Red("Error:"), msg)
	}
	os.Exit(1)
}
