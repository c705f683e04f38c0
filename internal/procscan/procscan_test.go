package procscan

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"testing"
)

func TestParseListing(t *testing.T) {
	text := []byte("1234 root 20 0 S\n5678 user 20 0 R\n abc bad\n\n  42\n007x\n-5 neg\n")
	pids, diags := ParseListing(text)

	if want := []int{1234, 5678, 42}; !reflect.DeepEqual(pids, want) {
		t.Errorf("pids = %v, want %v", pids, want)
	}
	if len(diags) != 4 {
		t.Fatalf("diagnostics = %d, want 4: %v", len(diags), diags)
	}
	for _, d := range diags {
		if d.Kind != KindDiscoveryParse {
			t.Errorf("kind = %q, want %q", d.Kind, KindDiscoveryParse)
		}
	}
	if diags[0].Line != 3 || diags[0].Text != "abc bad" {
		t.Errorf("first diagnostic = %+v", diags[0])
	}
}

func TestParseListingAllBad(t *testing.T) {
	pids, diags := ParseListing([]byte("PID USER\nfoo\n"))
	if len(pids) != 0 {
		t.Errorf("pids = %v, want none", pids)
	}
	if len(diags) != 2 {
		t.Errorf("diagnostics = %d, want 2", len(diags))
	}
}

func TestStripHeader(t *testing.T) {
	top := []byte("top - 10:00:00 up 1 day\nTasks: 2 total\n\n    PID USER  PR\n      1 root  20\n     77 root  20\n")
	pids, diags := ParseListing(stripHeader(top, "PID"))
	if want := []int{1, 77}; !reflect.DeepEqual(pids, want) {
		t.Errorf("pids = %v, want %v", pids, want)
	}
	if len(diags) != 0 {
		t.Errorf("unexpected diagnostics: %v", diags)
	}

	noHeader := []byte("1\n2\n")
	if got := stripHeader(noHeader, "PID"); string(got) != string(noHeader) {
		t.Errorf("stripHeader without header = %q", got)
	}
}

// fakeProc builds a proc root with a sched file for each pid.
func fakeProc(t *testing.T, bodies map[int]string) string {
	t.Helper()
	root := t.TempDir()
	for pid, body := range bodies {
		dir := filepath.Join(root, strconv.Itoa(pid))
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "sched"), []byte(body), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func TestResolve(t *testing.T) {
	root := fakeProc(t, map[int]string{1234: "----\n", 10: "----\n"})
	// pid 99 has a directory but no sched file.
	os.MkdirAll(filepath.Join(root, "99"), 0755)
	// pid 50 has a directory in place of the file.
	os.MkdirAll(filepath.Join(root, "50", "sched"), 0755)

	targets, diags := Resolve(root, []int{1234, 5678, 99, 10, 1234, 50})

	var got []int
	for _, tg := range targets {
		got = append(got, tg.PID)
		if tg.Path != SchedPath(root, tg.PID) {
			t.Errorf("path = %q", tg.Path)
		}
	}
	if want := []int{1234, 10}; !reflect.DeepEqual(got, want) {
		t.Errorf("targets = %v, want %v", got, want)
	}
	if n := diags.Count(KindResolveMiss); n != 3 {
		t.Errorf("resolve misses = %d, want 3", n)
	}
	if n := diags.Count(KindDuplicate); n != 1 {
		t.Errorf("duplicates = %d, want 1", n)
	}
	miss := diags.Filter(KindResolveMiss)[0]
	if miss.PID != 5678 || !errors.Is(miss, fs.ErrNotExist) {
		t.Errorf("miss = %v", miss)
	}
}

func TestSchedPath(t *testing.T) {
	if got := SchedPath("", 1); got != "/proc/1/sched" {
		t.Errorf("SchedPath = %q", got)
	}
	if got := SchedPath("/host/proc", 42); got != "/host/proc/42/sched" {
		t.Errorf("SchedPath = %q", got)
	}
}

func TestProcFSLister(t *testing.T) {
	root := fakeProc(t, map[int]string{3: "", 1: "", 20: ""})
	os.MkdirAll(filepath.Join(root, "self"), 0755)
	os.MkdirAll(filepath.Join(root, "sys"), 0755)

	pids, diags, err := (&ProcFSLister{Root: root}).List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(diags) != 0 {
		t.Errorf("unexpected diagnostics: %v", diags)
	}
	if len(pids) != 3 {
		t.Errorf("pids = %v, want 3 entries", pids)
	}
}

func TestProcFSListerMissingRoot(t *testing.T) {
	_, _, err := (&ProcFSLister{Root: filepath.Join(t.TempDir(), "nope")}).List(context.Background())
	if err == nil {
		t.Error("expected error for missing proc root")
	}
}

func TestCommandLister(t *testing.T) {
	l := &CommandLister{Name: "sh", Args: []string{"-c", "printf 'PID CMD\\n1 init\\nbad\\n22 sh\\n'"}, HeaderToken: "PID"}
	pids, diags, err := l.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if want := []int{1, 22}; !reflect.DeepEqual(pids, want) {
		t.Errorf("pids = %v, want %v", pids, want)
	}
	if len(diags) != 1 {
		t.Errorf("diagnostics = %d, want 1", len(diags))
	}
}

func TestCommandListerUnavailable(t *testing.T) {
	l := &CommandLister{Name: "schedprobe-no-such-binary"}
	if _, _, err := l.List(context.Background()); err == nil {
		t.Error("expected error when the listing command cannot run")
	}
}

func TestNewLister(t *testing.T) {
	tests := []struct {
		kind    string
		command []string
		wantErr bool
	}{
		{"", nil, false},
		{"top", nil, false},
		{"ps", nil, false},
		{"procfs", nil, false},
		{"command", []string{"ps", "-A"}, false},
		{"command", nil, true},
		{"wmi", nil, true},
	}
	for _, tt := range tests {
		_, err := NewLister(tt.kind, tt.command, "", "")
		if (err != nil) != tt.wantErr {
			t.Errorf("NewLister(%q) err = %v, wantErr %v", tt.kind, err, tt.wantErr)
		}
	}
}

func TestDiagnosticError(t *testing.T) {
	d := &Diagnostic{Kind: KindReadFailure, PID: 7, Path: "/proc/7/sched", Err: fs.ErrNotExist}
	if got := d.Error(); got != "read_failure pid=7 path=/proc/7/sched: file does not exist" {
		t.Errorf("Error() = %q", got)
	}
	if !KindReadFailure.Dropping() || KindFieldParse.Dropping() || KindEmptyRecord.Dropping() {
		t.Error("unexpected Dropping() classification")
	}
}
