package procscan

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Target is a process whose scheduler file existed at resolution time.
type Target struct {
	PID  int
	Path string
}

// SchedPath returns the scheduler file of pid under root.
func SchedPath(root string, pid int) string {
	if root == "" {
		root = DefaultProcRoot
	}
	return filepath.Join(root, strconv.Itoa(pid), "sched")
}

// Resolve keeps the pids whose scheduler file currently exists, in input
// order. The check races with process exit; readers must still handle a
// missing file.
func Resolve(root string, pids []int) ([]Target, Diagnostics) {
	var (
		targets []Target
		diags   Diagnostics
	)
	seen := make(map[int]bool, len(pids))
	for _, pid := range pids {
		path := SchedPath(root, pid)
		if seen[pid] {
			diags = append(diags, &Diagnostic{Kind: KindDuplicate, PID: pid, Path: path})
			continue
		}
		seen[pid] = true

		info, err := os.Stat(path)
		if err != nil {
			diags = append(diags, &Diagnostic{Kind: KindResolveMiss, PID: pid, Path: path, Err: err})
			continue
		}
		if !info.Mode().IsRegular() {
			diags = append(diags, &Diagnostic{
				Kind: KindResolveMiss, PID: pid, Path: path,
				Err: fmt.Errorf("not a regular file (%s)", info.Mode().Type()),
			})
			continue
		}
		targets = append(targets, Target{PID: pid, Path: path})
	}
	return targets, diags
}
