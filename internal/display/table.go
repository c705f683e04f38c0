package display

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/7c/schedprobe/internal/procscan"
	"github.com/7c/schedprobe/internal/sched"
)

// Table renders bordered tables for CLI and report output.
type Table struct {
	headers []string
	rows    [][]string // raw values (no color) for width calculation
	colored [][]string // colored values for rendering
	widths  []int
	plain   bool
}

// NewTable creates a new table with the given headers.
func NewTable(headers ...string) *Table {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	return &Table{headers: headers, widths: widths}
}

// Plain disables ANSI styling, for output written to files.
func (t *Table) Plain() *Table {
	t.plain = true
	return t
}

// AddRow adds a row to the table. Rows narrower than the header are
// rendered with empty trailing cells.
func (t *Table) AddRow(cols ...string) {
	t.AddColoredRow(cols, cols)
}

// AddColoredRow adds a row with separate raw (for widths) and colored (for display) values.
func (t *Table) AddColoredRow(raw []string, colored []string) {
	for i, c := range raw {
		if i < len(t.widths) && visibleLen(c) > t.widths[i] {
			t.widths[i] = visibleLen(c)
		}
	}
	t.rows = append(t.rows, raw)
	t.colored = append(t.colored, colored)
}

// Render writes the table to the given writer with dim borders and bold headers.
func (t *Table) Render(w io.Writer) {
	if len(t.rows) == 0 && len(t.headers) == 0 {
		return
	}
	t.line(w, "┌", "┬", "┐")
	t.headerRow(w)
	t.line(w, "├", "┼", "┤")
	for i := range t.rows {
		cols := t.colored[i]
		if t.plain {
			cols = t.rows[i]
		}
		t.row(w, t.rows[i], cols)
	}
	t.line(w, "└", "┴", "┘")
}

func (t *Table) style(code string) string {
	if t.plain {
		return ""
	}
	return code
}

func (t *Table) line(w io.Writer, left, mid, right string) {
	fmt.Fprint(w, t.style(dim)+left)
	for i, width := range t.widths {
		fmt.Fprint(w, strings.Repeat("─", width+2))
		if i < len(t.widths)-1 {
			fmt.Fprint(w, mid)
		}
	}
	fmt.Fprintln(w, right+t.style(reset))
}

func (t *Table) headerRow(w io.Writer) {
	bar := t.style(dim) + "│" + t.style(reset)
	fmt.Fprint(w, bar)
	for i, width := range t.widths {
		h := ""
		if i < len(t.headers) {
			h = t.headers[i]
		}
		fmt.Fprintf(w, " "+t.style(bold)+"%-*s"+t.style(reset)+" "+bar, width, h)
	}
	fmt.Fprintln(w)
}

func (t *Table) row(w io.Writer, rawCols, colorCols []string) {
	bar := t.style(dim) + "│" + t.style(reset)
	fmt.Fprint(w, bar)
	for i, width := range t.widths {
		raw := ""
		col := ""
		if i < len(rawCols) {
			raw = rawCols[i]
		}
		if i < len(colorCols) {
			col = colorCols[i]
		}
		// Pad based on raw (visible) length
		padding := width - visibleLen(raw)
		if padding < 0 {
			padding = 0
		}
		fmt.Fprintf(w, " %s%*s "+bar, col, padding, "")
	}
	fmt.Fprintln(w)
}

// SampleOptions controls RenderSample.
type SampleOptions struct {
	Naming sched.Naming
	Rows   int // <= 0 renders every row
	Plain  bool
}

// RenderSample renders a sample table with the PID column bold and missing
// cells dimmed.
func RenderSample(w io.Writer, tbl *sched.Table, opts SampleOptions) {
	out := NewTable(sched.Header(opts.Naming)...)
	if opts.Plain {
		out.Plain()
	}
	for _, r := range tbl.Head(opts.Rows).Rows {
		raw := r.Values()
		colored := make([]string, len(raw))
		colored[0] = Bold(raw[0])
		for i, c := range raw[1:] {
			if c == sched.Missing {
				colored[i+1] = Dim(c)
			} else {
				colored[i+1] = c
			}
		}
		out.AddColoredRow(raw, colored)
	}
	out.Render(w)
}

// RenderFields lists the canonical columns with both labels.
func RenderFields(w io.Writer) {
	tbl := NewTable("#", "Short", "Long")
	tbl.AddColoredRow([]string{"0", sched.PIDColumn, sched.PIDColumn},
		[]string{Dim("0"), Cyan(sched.PIDColumn), sched.PIDColumn})
	for i, f := range sched.Fields {
		n := fmt.Sprintf("%d", i+1)
		tbl.AddColoredRow([]string{n, f.Short, f.Long}, []string{Dim(n), Cyan(f.Short), f.Long})
	}
	tbl.Render(w)
}

// RenderSummary renders diagnostic counts of one cycle, sorted by kind.
func RenderSummary(w io.Writer, counts map[procscan.Kind]int) {
	if len(counts) == 0 {
		return
	}
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)

	tbl := NewTable("Diagnostic", "Count")
	for _, k := range kinds {
		n := fmt.Sprintf("%d", counts[procscan.Kind(k)])
		colored := Yellow(k)
		if procscan.Kind(k).Dropping() {
			colored = Red(k)
		}
		tbl.AddColoredRow([]string{k, n}, []string{colored, n})
	}
	tbl.Render(w)
}
