package sched

import (
	"fmt"
	"strings"
)

// Missing fills cells a record did not provide.
const Missing = "-"

// Align controls how record values are placed into columns.
type Align string

const (
	// AlignPosition places values in file order, first value in the first
	// column.
	AlignPosition Align = "position"
	// AlignKey places each value under the column whose long name matches
	// its key.
	AlignKey Align = "key"
)

// ParseAlign accepts "position" or "key"; empty means position.
func ParseAlign(s string) (Align, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "position":
		return AlignPosition, nil
	case "key":
		return AlignKey, nil
	default:
		return "", fmt.Errorf("unknown align %q (expected \"position\" or \"key\")", s)
	}
}

// Entry pairs a process with its parsed record.
type Entry struct {
	PID    int
	Record Record
}

// Row is one process in a Table.
type Row struct {
	PID int `json:"pid"`
	// Cells always has Width entries; absent values are Missing.
	Cells []string `json:"cells"`
	// Filled counts the cells that hold a parsed value.
	Filled int `json:"filled"`
	// Extra holds accepted fields that have no column.
	Extra []Field `json:"extra,omitempty"`
}

// Complete reports whether every column was filled.
func (r Row) Complete() bool { return r.Filled == Width }

// Table is a fixed-width sample. Header labels are chosen at render time.
type Table struct {
	Align Align `json:"align"`
	Rows  []Row `json:"rows"`
}

// Assemble builds one row per entry in input order. Records shorter than
// Width are padded with Missing; values past the last column go to Row.Extra.
func Assemble(entries []Entry, align Align) *Table {
	t := &Table{Align: align, Rows: make([]Row, 0, len(entries))}
	for _, e := range entries {
		t.Rows = append(t.Rows, buildRow(e, align))
	}
	return t
}

func buildRow(e Entry, align Align) Row {
	row := Row{PID: e.PID, Cells: make([]string, Width)}
	for i := range row.Cells {
		row.Cells[i] = Missing
	}

	for i, f := range e.Record {
		col := i
		if align == AlignKey {
			col = IndexOf(f.Key)
			if col >= 0 && row.Cells[col] != Missing {
				col = -1 // repeated key
			}
		}
		if col < 0 || col >= Width {
			row.Extra = append(row.Extra, f)
			continue
		}
		row.Cells[col] = f.Value
		row.Filled++
	}
	return row
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// Head returns a table with the first n rows. n <= 0 keeps every row.
func (t *Table) Head(n int) *Table {
	if n <= 0 || n >= len(t.Rows) {
		return t
	}
	return &Table{Align: t.Align, Rows: t.Rows[:n]}
}

// Header returns the column labels under n.
func (t *Table) Header(n Naming) []string { return Header(n) }

// Values returns a row as text: PID followed by its cells.
func (r Row) Values() []string {
	out := make([]string, 0, len(r.Cells)+1)
	out = append(out, fmt.Sprintf("%d", r.PID))
	return append(out, r.Cells...)
}
