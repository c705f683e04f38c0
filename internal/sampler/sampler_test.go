package sampler

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"testing"

	"github.com/7c/schedprobe/internal/procscan"
	"github.com/7c/schedprobe/internal/sched"
)

type recorder struct {
	cycles   []*Result
	failures []error
}

func (r *recorder) ObserveCycle(res *Result) { r.cycles = append(r.cycles, res) }
func (r *recorder) ObserveFailure(err error) { r.failures = append(r.failures, err) }

type failingLister struct{}

func (failingLister) List(context.Context) ([]int, procscan.Diagnostics, error) {
	return nil, nil, errors.New("top: executable file not found")
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeSched(t *testing.T, root string, pid int, body string) {
	t.Helper()
	dir := filepath.Join(root, strconv.Itoa(pid))
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "sched"), []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestSampleEndToEnd(t *testing.T) {
	root := t.TempDir()
	writeSched(t, root, 1234, "----\npolicy:0\nprio:120\n")

	rec := &recorder{}
	s := &Sampler{
		Lister:   &procscan.StaticLister{Text: []byte("1234 ... \n5678 ...\n abc bad\n")},
		ProcRoot: root,
		Logger:   quietLogger(),
		Observer: rec,
	}
	res, err := s.Sample(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if res.Enumerated != 2 || res.Resolved != 1 {
		t.Errorf("enumerated = %d, resolved = %d", res.Enumerated, res.Resolved)
	}
	if res.Table.Len() != 1 {
		t.Fatalf("rows = %d, want 1", res.Table.Len())
	}
	row := res.Table.Rows[0]
	if got := row.Values()[:3]; !reflect.DeepEqual(got, []string{"1234", "0", "120"}) {
		t.Errorf("row = %v", got)
	}
	if row.Cells[2] != sched.Missing {
		t.Errorf("third cell = %q, want %q", row.Cells[2], sched.Missing)
	}
	if n := res.Diagnostics.Count(procscan.KindDiscoveryParse); n != 1 {
		t.Errorf("discovery parse diagnostics = %d, want 1", n)
	}
	if n := res.Diagnostics.Count(procscan.KindResolveMiss); n != 1 {
		t.Errorf("resolve misses = %d, want 1", n)
	}
	if res.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", res.Dropped())
	}
	if len(rec.cycles) != 1 || len(rec.failures) != 0 {
		t.Errorf("observer cycles = %d, failures = %d", len(rec.cycles), len(rec.failures))
	}
}

func TestSampleKeepsEmptyRecords(t *testing.T) {
	root := t.TempDir()
	writeSched(t, root, 1, "no header\npolicy:0\n")
	writeSched(t, root, 2, "----\nbad line\n")

	s := &Sampler{
		Lister:   &procscan.StaticLister{Text: []byte("1\n2\n")},
		ProcRoot: root,
		Logger:   quietLogger(),
	}
	res, err := s.Sample(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Table.Len() != 2 {
		t.Fatalf("rows = %d, want 2", res.Table.Len())
	}
	for _, r := range res.Table.Rows {
		if r.Filled != 0 {
			t.Errorf("pid %d filled = %d, want 0", r.PID, r.Filled)
		}
	}
	if n := res.Diagnostics.Count(procscan.KindNoSeparator); n != 1 {
		t.Errorf("no-separator diagnostics = %d, want 1", n)
	}
	if n := res.Diagnostics.Count(procscan.KindEmptyRecord); n != 1 {
		t.Errorf("empty-record diagnostics = %d, want 1", n)
	}
	if n := res.Diagnostics.Count(procscan.KindFieldParse); n != 1 {
		t.Errorf("field-parse diagnostics = %d, want 1", n)
	}
}

func TestSampleParallelPreservesOrder(t *testing.T) {
	root := t.TempDir()
	listing := ""
	var want []int
	for pid := 100; pid > 0; pid-- {
		writeSched(t, root, pid, "----\nprio:"+strconv.Itoa(pid)+"\n")
		listing += strconv.Itoa(pid) + "\n"
		want = append(want, pid)
	}

	s := &Sampler{
		Lister:   &procscan.StaticLister{Text: []byte(listing)},
		ProcRoot: root,
		Workers:  8,
		Logger:   quietLogger(),
	}
	res, err := s.Sample(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	var got []int
	for _, r := range res.Table.Rows {
		got = append(got, r.PID)
		if r.Cells[0] != strconv.Itoa(r.PID) {
			t.Errorf("pid %d first cell = %q", r.PID, r.Cells[0])
		}
	}
	if !reflect.DeepEqual(got, want) {
		t.Error("parallel sampling changed row order")
	}
}

func TestSampleListerUnavailable(t *testing.T) {
	rec := &recorder{}
	s := &Sampler{Lister: failingLister{}, Logger: quietLogger(), Observer: rec}
	if _, err := s.Sample(context.Background()); err == nil {
		t.Fatal("expected error when the listing source is unavailable")
	}
	if len(rec.failures) != 1 {
		t.Errorf("failures = %d, want 1", len(rec.failures))
	}
}

func TestSampleEmptyListing(t *testing.T) {
	s := &Sampler{
		Lister:   &procscan.StaticLister{Text: []byte("garbage\n")},
		ProcRoot: t.TempDir(),
		Logger:   quietLogger(),
	}
	res, err := s.Sample(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Table.Len() != 0 || res.Enumerated != 0 {
		t.Errorf("rows = %d, enumerated = %d", res.Table.Len(), res.Enumerated)
	}
}

func TestSampleCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := &Sampler{Lister: &procscan.StaticLister{Text: []byte("1\n")}, Logger: quietLogger()}
	if _, err := s.Sample(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestParseTargetReadFailure(t *testing.T) {
	p := parseTarget(procscan.Target{PID: 9, Path: filepath.Join(t.TempDir(), "9", "sched")})
	if p.ok {
		t.Fatal("unreadable file should leave the process out of the table")
	}
	if len(p.diags) != 1 || p.diags[0].Kind != procscan.KindReadFailure || p.diags[0].PID != 9 {
		t.Fatalf("diags = %v, want one read_failure for pid 9", p.diags)
	}
	if !errors.Is(p.diags[0], fs.ErrNotExist) {
		t.Errorf("diagnostic %v should wrap fs.ErrNotExist", p.diags[0])
	}
}

// A process that exits between resolve and parse drops only itself.
func TestParseAllIsolatesReadFailure(t *testing.T) {
	root := t.TempDir()
	writeSched(t, root, 1, "----\nprio:120\n")
	writeSched(t, root, 2, "----\nprio:100\n")
	writeSched(t, root, 3, "----\nprio:139\n")
	targets, diags := procscan.Resolve(root, []int{1, 2, 3})
	if len(targets) != 3 || len(diags) != 0 {
		t.Fatalf("resolve = %v, %v", targets, diags)
	}
	if err := os.RemoveAll(filepath.Join(root, "2")); err != nil {
		t.Fatal(err)
	}

	for _, workers := range []int{1, 4} {
		s := &Sampler{Workers: workers, Logger: quietLogger()}
		results, err := s.parseAll(context.Background(), targets)
		if err != nil {
			t.Fatalf("workers=%d: %v", workers, err)
		}
		var kept []int
		var failed procscan.Diagnostics
		for _, p := range results {
			if p.ok {
				kept = append(kept, p.entry.PID)
			}
			failed = append(failed, p.diags.Filter(procscan.KindReadFailure)...)
		}
		if !reflect.DeepEqual(kept, []int{1, 3}) {
			t.Errorf("workers=%d: kept = %v, want [1 3]", workers, kept)
		}
		if len(failed) != 1 || failed[0].PID != 2 || !errors.Is(failed[0], fs.ErrNotExist) {
			t.Errorf("workers=%d: read failures = %v", workers, failed)
		}
	}
}
