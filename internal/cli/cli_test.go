package cli

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/7c/schedprobe/internal/config"
	"github.com/7c/schedprobe/internal/outfile"
	"github.com/7c/schedprobe/internal/procscan"
	"github.com/7c/schedprobe/internal/sampler"
	"github.com/7c/schedprobe/internal/sched"
)

func TestSampleCmd_Flags(t *testing.T) {
	f := sampleCmd.Flags()
	for _, name := range []string{"all", "summary", "plain"} {
		flag := f.Lookup(name)
		if flag == nil {
			t.Fatalf("expected --%s flag", name)
		}
		if flag.DefValue != "false" {
			t.Errorf("--%s default = %q, want false", name, flag.DefValue)
		}
	}
}

func TestWatchCmd_Flags(t *testing.T) {
	f := watchCmd.Flags()
	interval := f.Lookup("interval")
	if interval == nil {
		t.Fatal("expected --interval flag")
	}
	if interval.Shorthand != "i" || interval.DefValue != "0s" {
		t.Errorf("interval shorthand = %q, default = %q", interval.Shorthand, interval.DefValue)
	}
	if f.Lookup("stdout") == nil || f.Lookup("no-report") == nil || f.Lookup("count") == nil {
		t.Error("expected --stdout, --no-report and --count flags")
	}
}

func TestRootCmd_PersistentFlags(t *testing.T) {
	pf := rootCmd.PersistentFlags()
	for _, name := range []string{"json", "config", "proc-root", "source", "workers", "align", "log-level"} {
		if pf.Lookup(name) == nil {
			t.Errorf("expected --%s persistent flag", name)
		}
	}
}

func TestCommandArgs(t *testing.T) {
	if err := sampleCmd.Args(sampleCmd, []string{"5", "long"}); err != nil {
		t.Errorf("2 args should be valid: %v", err)
	}
	if err := sampleCmd.Args(sampleCmd, []string{"5", "long", "x"}); err == nil {
		t.Error("3 args should be invalid")
	}
	if err := pidCmd.Args(pidCmd, []string{}); err == nil {
		t.Error("pid requires an argument")
	}
	if err := fieldsCmd.Args(fieldsCmd, []string{"x"}); err == nil {
		t.Error("fields takes no arguments")
	}
}

func TestParsePositional(t *testing.T) {
	tests := []struct {
		args       []string
		wantRows   int
		wantNaming sched.Naming
		wantErr    bool
	}{
		{nil, 10, sched.NamingShort, false},
		{[]string{"3"}, 3, sched.NamingShort, false},
		{[]string{"3", "long"}, 3, sched.NamingLong, false},
		{[]string{"0"}, 0, "", true},
		{[]string{"-2"}, 0, "", true},
		{[]string{"ten"}, 0, "", true},
		{[]string{"3", "wide"}, 0, "", true},
	}
	for _, tt := range tests {
		rows, naming, err := parsePositional(tt.args, 10, sched.NamingShort)
		if (err != nil) != tt.wantErr {
			t.Errorf("parsePositional(%v) err = %v, wantErr %v", tt.args, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && (rows != tt.wantRows || naming != tt.wantNaming) {
			t.Errorf("parsePositional(%v) = %d, %q", tt.args, rows, naming)
		}
	}
}

func TestApplyOverrides(t *testing.T) {
	defer func() { procRootFlag, sourceFlag, workersFlag, alignFlag, logLevelFlag = "", "", 0, "", "" }()

	cfg, _, err := config.Resolve(nil)
	if err != nil {
		t.Fatal(err)
	}
	procRootFlag, sourceFlag, workersFlag, alignFlag, logLevelFlag = "/host/proc", "procfs", 4, "key", "debug"
	if err := applyOverrides(cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.ProcRoot != "/host/proc" || cfg.SourceKind != "procfs" || cfg.Workers != 4 ||
		cfg.Align != sched.AlignKey || cfg.LogLevel != slog.LevelDebug {
		t.Errorf("overrides not applied: %+v", cfg)
	}

	alignFlag = "diagonal"
	if err := applyOverrides(cfg); err == nil {
		t.Error("expected error for bad --align")
	}
	alignFlag, workersFlag = "", -1
	if err := applyOverrides(cfg); err == nil {
		t.Error("expected error for negative --workers")
	}
}

func fakeProc(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for _, pid := range []string{"1", "2"} {
		dir := filepath.Join(root, pid)
		os.MkdirAll(dir, 0755)
		os.WriteFile(filepath.Join(dir, "sched"), []byte("x\n----\nse.exec_start:1.5\nse.vruntime:2\nnr_switches:5\n"), 0644)
	}
	return root
}

func testSampler(root string) *sampler.Sampler {
	return &sampler.Sampler{
		Lister:   &procscan.StaticLister{Text: []byte("1\n2\n3\n")},
		ProcRoot: root,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestNewSampleJSON(t *testing.T) {
	res, err := testSampler(fakeProc(t)).Sample(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	out := newSampleJSON(res, sched.NamingLong, 1)
	if len(out.Columns) != sched.Width+1 || out.Columns[1] != "se.exec_start" {
		t.Errorf("columns = %v", out.Columns)
	}
	if len(out.Rows) != 1 || out.Rows[0][0] != "1" {
		t.Errorf("rows = %v", out.Rows)
	}
	if out.Enumerated != 3 || out.Sampled != 2 || out.Diagnostics["resolve_miss"] != 1 {
		t.Errorf("counts = %d %d %v", out.Enumerated, out.Sampled, out.Diagnostics)
	}
}

func TestWatcherCycles(t *testing.T) {
	reportPath := filepath.Join(t.TempDir(), "pid_sched_data.txt")
	os.WriteFile(reportPath, []byte("stale\n"), 0644)

	rep, err := outfile.Open(reportPath, outfile.Options{Truncate: true})
	if err != nil {
		t.Fatal(err)
	}
	var console bytes.Buffer
	w := &watcher{
		sampler: testSampler(fakeProc(t)),
		rows:    10,
		naming:  sched.NamingShort,
		console: &console,
		report:  rep,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	w.run(context.Background(), 1, 2)
	rep.Close()

	data, err := os.ReadFile(reportPath)
	if err != nil {
		t.Fatal(err)
	}
	report := string(data)
	if strings.Contains(report, "stale") {
		t.Error("report file should be truncated at start")
	}
	if n := strings.Count(report, "# sample "); n != 2 {
		t.Errorf("report samples = %d, want 2", n)
	}
	if !strings.Contains(report, "rows=2") {
		t.Error("rows should be clamped to the sampled count")
	}
	if strings.Contains(report, "\033[") {
		t.Error("report file should be plain text")
	}
	if n := strings.Count(console.String(), "EXEC_ST"); n != 2 {
		t.Errorf("console tables = %d, want 2", n)
	}
}

func TestWatcherJSONStream(t *testing.T) {
	var console bytes.Buffer
	w := &watcher{
		sampler: testSampler(fakeProc(t)),
		rows:    1,
		naming:  sched.NamingShort,
		json:    true,
		console: &console,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	w.cycle(context.Background())
	line := strings.TrimSpace(console.String())
	if !strings.HasPrefix(line, "{") || strings.Count(line, "\n") != 0 {
		t.Errorf("expected one JSON line, got %q", line)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.0 KB"},
		{10 * 1024 * 1024, "10.0 MB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.in); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWatcherLogsEncodeFailure(t *testing.T) {
	var console, logs bytes.Buffer
	w := &watcher{
		rows:    1,
		naming:  sched.NamingShort,
		json:    true,
		console: &console,
		logger:  slog.New(slog.NewTextHandler(&logs, nil)),
	}
	// time.Time refuses to encode years past 9999.
	w.publish(&sampler.Result{
		Table:   sched.Assemble([]sched.Entry{{PID: 1}}, sched.AlignPosition),
		Started: time.Date(10000, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	if console.Len() != 0 {
		t.Errorf("console = %q, want nothing on encode failure", console.String())
	}
	if !strings.Contains(logs.String(), "encode sample failed") {
		t.Errorf("logs = %q, want encode failure", logs.String())
	}
}
