package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/7c/schedprobe/internal/sched"
)

// Inspection is everything `schedprobe pid` shows for one process.
type Inspection struct {
	PID    int           `json:"pid"`
	Comm   string        `json:"comm,omitempty"`
	Path   string        `json:"path"`
	Result *sched.Result `json:"sched"`
}

// RenderInspection writes a sectioned report of one scheduler file. Every
// parsed field is listed in file order, canonical ones with their short label.
func RenderInspection(w io.Writer, in *Inspection) {
	res := in.Result
	canonical := 0
	for _, f := range res.Record {
		if sched.IndexOf(f.Key) >= 0 {
			canonical++
		}
	}

	sectionHeader(w, "Process")
	sectionRow(w, "PID", fmt.Sprintf("%d", in.PID))
	if in.Comm != "" {
		sectionRow(w, "Command", in.Comm)
	}
	sectionRow(w, "File", in.Path)
	if res.HeaderFound {
		sectionRow(w, "Separator", Green("found"))
	} else {
		sectionRow(w, "Separator", Red("missing"))
	}
	sectionRow(w, "Fields", fmt.Sprintf("%d parsed, %d/%d canonical", len(res.Record), canonical, sched.Width))
	sectionFooter(w)

	if len(res.Record) > 0 {
		sectionHeader(w, "Scheduler")
		for _, f := range res.Record {
			label := ""
			if i := sched.IndexOf(f.Key); i >= 0 {
				label = Cyan(fmt.Sprintf("%-9s", sched.Fields[i].Short))
			} else {
				label = strings.Repeat(" ", 9)
			}
			fmt.Fprintf(w, "  | %s %-34s %s\n", label, f.Key, f.Value)
		}
		sectionFooter(w)
	}

	if len(res.Skipped) > 0 {
		sectionHeader(w, "Skipped lines")
		for _, le := range res.Skipped {
			sectionRow(w, fmt.Sprintf("line %d", le.Line), fmt.Sprintf("%s %s", truncate(le.Text, 36), Dim("("+le.Reason+")")))
		}
		sectionFooter(w)
	}
}

func sectionHeader(w io.Writer, title string) {
	padding := 64 - len(title)
	if padding < 0 {
		padding = 0
	}
	fmt.Fprintf(w, "  +- %s %s+\n", Bold(title), strings.Repeat("-", padding))
}

func sectionRow(w io.Writer, key, val string) {
	fmt.Fprintf(w, "  | %-17s %s\n", key, val)
}

func sectionFooter(w io.Writer) {
	fmt.Fprintf(w, "  +%s+\n\n", strings.Repeat("-", 68))
}

// truncate shortens s to max runes, never splitting a UTF-8 sequence.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
