package procscan

import (
	"fmt"
	"strings"
)

// Kind classifies why a line or a process was dropped.
type Kind string

const (
	KindDiscoveryParse Kind = "discovery_parse" // listing line without a leading PID
	KindDuplicate      Kind = "duplicate"       // PID listed more than once
	KindResolveMiss    Kind = "resolve_miss"    // no scheduler file for the PID
	KindReadFailure    Kind = "read_failure"    // file vanished or unreadable at read time
	KindFieldParse     Kind = "field_parse"     // malformed key:value line
	KindNoSeparator    Kind = "no_separator"    // header separator never found
	KindEmptyRecord    Kind = "empty_record"    // no data line accepted
)

// Dropping reports whether the kind removes a process from the sample.
// Per-line kinds and empty records keep the process.
func (k Kind) Dropping() bool {
	switch k {
	case KindResolveMiss, KindReadFailure, KindDuplicate:
		return true
	}
	return false
}

// Diagnostic records one recoverable failure. Zero-valued fields do not
// apply to the kind.
type Diagnostic struct {
	Kind Kind
	PID  int
	Path string
	Line int
	Text string
	Err  error
}

func (d *Diagnostic) Error() string {
	var b strings.Builder
	b.WriteString(string(d.Kind))
	if d.PID > 0 {
		fmt.Fprintf(&b, " pid=%d", d.PID)
	}
	if d.Path != "" {
		fmt.Fprintf(&b, " path=%s", d.Path)
	}
	if d.Line > 0 {
		fmt.Fprintf(&b, " line=%d", d.Line)
	}
	if d.Text != "" {
		fmt.Fprintf(&b, " text=%q", d.Text)
	}
	if d.Err != nil {
		fmt.Fprintf(&b, ": %v", d.Err)
	}
	return b.String()
}

func (d *Diagnostic) Unwrap() error { return d.Err }

// Diagnostics is the list of everything dropped during one cycle.
type Diagnostics []*Diagnostic

// Count returns the number of diagnostics of kind k.
func (ds Diagnostics) Count(k Kind) int {
	n := 0
	for _, d := range ds {
		if d.Kind == k {
			n++
		}
	}
	return n
}

// Counts tallies diagnostics by kind.
func (ds Diagnostics) Counts() map[Kind]int {
	m := make(map[Kind]int)
	for _, d := range ds {
		m[d.Kind]++
	}
	return m
}

// Filter returns the diagnostics of kind k.
func (ds Diagnostics) Filter(k Kind) Diagnostics {
	var out Diagnostics
	for _, d := range ds {
		if d.Kind == k {
			out = append(out, d)
		}
	}
	return out
}
