package procscan

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/prometheus/procfs"
)

// DefaultProcRoot is where the kernel mounts procfs.
const DefaultProcRoot = procfs.DefaultMountPoint

// Lister produces the current process set. A returned error means the
// listing source itself is unavailable; per-line problems are diagnostics.
type Lister interface {
	List(ctx context.Context) ([]int, Diagnostics, error)
}

// CommandLister runs a process-listing utility and parses its output.
type CommandLister struct {
	Name string
	Args []string
	// HeaderToken, when set, drops output lines up to and including the
	// first one whose first token equals it (the column header of top).
	HeaderToken string
}

// TopLister lists processes from one batch iteration of top, with the PID
// column header stripped. It is the default source.
func TopLister() *CommandLister {
	return &CommandLister{Name: "top", Args: []string{"-b", "-n", "1"}, HeaderToken: "PID"}
}

// PSLister lists processes with ps, one bare PID per line.
func PSLister() *CommandLister {
	return &CommandLister{Name: "ps", Args: []string{"-e", "-o", "pid="}}
}

func (c *CommandLister) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// List runs the command and buffers its stdout in memory.
func (c *CommandLister) List(ctx context.Context) ([]int, Diagnostics, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		// A non-zero exit with usable output still yields a listing.
		if !errors.As(err, &exitErr) || stdout.Len() == 0 {
			msg := strings.TrimSpace(stderr.String())
			if msg != "" {
				return nil, nil, fmt.Errorf("%s: %w (%s)", c, err, msg)
			}
			return nil, nil, fmt.Errorf("%s: %w", c, err)
		}
	}
	pids, diags := ParseListing(stripHeader(stdout.Bytes(), c.HeaderToken))
	return pids, diags, nil
}

// ProcFSLister enumerates numeric entries of a procfs mount.
type ProcFSLister struct {
	Root string
}

func (p *ProcFSLister) String() string { return "procfs:" + p.root() }

func (p *ProcFSLister) root() string {
	if p.Root == "" {
		return DefaultProcRoot
	}
	return p.Root
}

// List reads the proc root directory.
func (p *ProcFSLister) List(ctx context.Context) ([]int, Diagnostics, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	fs, err := procfs.NewFS(p.root())
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", p.root(), err)
	}
	procs, err := fs.AllProcs()
	if err != nil {
		return nil, nil, fmt.Errorf("list %s: %w", p.root(), err)
	}
	pids := make([]int, 0, len(procs))
	for _, proc := range procs {
		pids = append(pids, proc.PID)
	}
	return pids, nil, nil
}

// StaticLister parses a fixed listing text. It backs tests and replaying a
// captured listing.
type StaticLister struct {
	Text        []byte
	HeaderToken string
}

func (s *StaticLister) List(ctx context.Context) ([]int, Diagnostics, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	pids, diags := ParseListing(stripHeader(s.Text, s.HeaderToken))
	return pids, diags, nil
}

// NewLister builds a lister from a source kind: top, ps, procfs or command.
func NewLister(kind string, command []string, headerToken, procRoot string) (Lister, error) {
	switch kind {
	case "", "top":
		l := TopLister()
		if headerToken != "" {
			l.HeaderToken = headerToken
		}
		return l, nil
	case "ps":
		l := PSLister()
		l.HeaderToken = headerToken
		return l, nil
	case "procfs":
		return &ProcFSLister{Root: procRoot}, nil
	case "command":
		if len(command) == 0 {
			return nil, fmt.Errorf("source kind \"command\" requires a command")
		}
		return &CommandLister{Name: command[0], Args: command[1:], HeaderToken: headerToken}, nil
	default:
		return nil, fmt.Errorf("unknown source kind %q (expected top, ps, procfs or command)", kind)
	}
}
