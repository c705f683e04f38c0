package gui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/7c/schedprobe/internal/procscan"
	"github.com/7c/schedprobe/internal/sampler"
	"github.com/7c/schedprobe/internal/sched"
)

// Sampler is the part of *sampler.Sampler the dashboard needs.
type Sampler interface {
	Sample(ctx context.Context) (*sampler.Result, error)
}

// model is the Bubble Tea model for the scheduler dashboard.
type model struct {
	sampler  Sampler
	interval time.Duration
	naming   sched.Naming

	result   *sampler.Result
	err      error
	sampling bool
	tickGen  int // generation of the live tick; older ticks are ignored
	selected int
	offset   int // first visible column after PID

	width  int
	height int

	showDetail bool
	detail     sched.Row
}

// tickMsg fires on every refresh interval.
type tickMsg struct {
	gen int
}

// sampleMsg carries the outcome of one cycle.
type sampleMsg struct {
	res *sampler.Result
	err error
}

// Run starts the Bubble Tea TUI program.
func Run(s Sampler, interval time.Duration, naming sched.Naming) error {
	m := newModel(s, interval, naming)
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// newModel starts in the sampling state since Init runs the first cycle.
func newModel(s Sampler, interval time.Duration, naming sched.Naming) model {
	return model{sampler: s, interval: interval, naming: naming, sampling: true}
}

func (m model) Init() tea.Cmd {
	return m.sampleCmd()
}

func tickCmd(d time.Duration, gen int) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return tickMsg{gen: gen}
	})
}

// sampleCmd runs a cycle off the UI goroutine.
func (m model) sampleCmd() tea.Cmd {
	s := m.sampler
	return func() tea.Msg {
		res, err := s.Sample(context.Background())
		return sampleMsg{res: res, err: err}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tickMsg:
		if msg.gen != m.tickGen || m.sampling {
			return m, nil
		}
		m.sampling = true
		return m, m.sampleCmd()

	case sampleMsg:
		m.sampling = false
		m.err = msg.err
		if msg.err == nil {
			m.result = msg.res
			if n := m.result.Table.Len(); m.selected >= n {
				m.selected = max(0, n-1)
			}
		}
		m.tickGen++
		return m, tickCmd(m.interval, m.tickGen)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	}

	return m, nil
}

func (m model) rows() []sched.Row {
	if m.result == nil {
		return nil
	}
	return m.result.Table.Rows
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	switch key {
	case "q", "ctrl+c":
		return m, tea.Quit
	}

	if m.showDetail {
		switch key {
		case "esc", "enter":
			m.showDetail = false
		case "n":
			m.naming = toggle(m.naming)
		}
		return m, nil
	}

	rows := m.rows()
	switch key {
	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}
	case "down", "j":
		if m.selected < len(rows)-1 {
			m.selected++
		}
	case "left", "h":
		if m.offset > 0 {
			m.offset--
		}
	case "right", "l":
		if m.offset < sched.Width-1 {
			m.offset++
		}
	case "enter":
		if len(rows) > 0 {
			m.showDetail = true
			m.detail = rows[m.selected]
		}
	case "n":
		m.naming = toggle(m.naming)
	case "r":
		if !m.sampling {
			m.sampling = true
			m.tickGen++ // the pending tick is superseded
			return m, m.sampleCmd()
		}
	}
	return m, nil
}

func toggle(n sched.Naming) sched.Naming {
	if n == sched.NamingLong {
		return sched.NamingShort
	}
	return sched.NamingLong
}

// ---------------------------------------------------------------------------
// View
// ---------------------------------------------------------------------------

func (m model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title()))
	b.WriteString("\n\n")

	switch {
	case m.result == nil && m.err == nil:
		b.WriteString(missingStyle.Render("  Sampling...") + "\n")
	case m.result != nil:
		b.WriteString(m.renderTable())
	}

	b.WriteString("\n")
	if m.err != nil {
		b.WriteString(errorStyle.Render("Error: "+m.err.Error()) + "\n")
	} else if m.result != nil {
		if line := summaryLine(m.result); line != "" {
			b.WriteString(warnStyle.Render(line) + "\n")
		}
	}

	b.WriteString(helpStyle.Render(
		"[↑↓] select  [←→] scroll  [enter] detail  [n] naming  [r] refresh  [q] quit",
	))

	if m.showDetail {
		return m.overlayCenter(b.String(), m.renderDetail())
	}
	return b.String()
}

func (m model) title() string {
	if m.result == nil {
		return fmt.Sprintf("schedprobe  every %s", m.interval)
	}
	return fmt.Sprintf("schedprobe  every %s  %d processes  last %s (%s)",
		m.interval, m.result.Table.Len(),
		m.result.Started.Format("15:04:05"),
		m.result.Duration.Round(time.Millisecond))
}

// summaryLine reports dropped processes and skipped lines of the last cycle.
func summaryLine(res *sampler.Result) string {
	counts := res.Diagnostics.Counts()
	var parts []string
	if d := res.Dropped(); d > 0 {
		parts = append(parts, fmt.Sprintf("%d dropped", d))
	}
	if n := counts[procscan.KindFieldParse]; n > 0 {
		parts = append(parts, fmt.Sprintf("%d lines skipped", n))
	}
	if n := counts[procscan.KindNoSeparator] + counts[procscan.KindEmptyRecord]; n > 0 {
		parts = append(parts, fmt.Sprintf("%d empty records", n))
	}
	return strings.Join(parts, ", ")
}

// visibleRows returns the window of rows that fits the terminal and keeps
// the selection in view.
func (m model) visibleRows() (start, end int) {
	n := len(m.rows())
	// title(2) + header(1) + rule(1) + blank(1) + status(1) + help(1)
	avail := max(m.height-7, 1)
	if n <= avail {
		return 0, n
	}
	start = 0
	if m.selected >= avail {
		start = m.selected - avail + 1
	}
	return start, start + avail
}

// renderTable renders PID plus as many columns as fit, starting at offset.
func (m model) renderTable() string {
	header := sched.Header(m.naming)
	rows := m.rows()
	start, end := m.visibleRows()

	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = len(h)
	}
	for _, r := range rows[start:end] {
		for i, c := range r.Values() {
			widths[i] = max(widths[i], len(c))
		}
	}

	// PID always shown; then fields from offset while they fit.
	cols := []int{0}
	used := widths[0]
	for i := 1 + m.offset; i < len(header); i++ {
		if used+2+widths[i] > m.width-2 && len(cols) > 1 {
			break
		}
		cols = append(cols, i)
		used += 2 + widths[i]
	}

	var sb strings.Builder
	var hparts []string
	for _, c := range cols {
		hparts = append(hparts, fmt.Sprintf("%-*s", widths[c], header[c]))
	}
	sb.WriteString(" " + headerStyle.Render(strings.Join(hparts, "  ")) + "\n")
	sb.WriteString(" " + ruleStyle.Render(strings.Repeat("─", used)) + "\n")

	for i := start; i < end; i++ {
		vals := rows[i].Values()
		var parts []string
		for _, c := range cols {
			cell := fmt.Sprintf("%-*s", widths[c], vals[c])
			if vals[c] == sched.Missing && i != m.selected {
				cell = missingStyle.Render(cell)
			}
			parts = append(parts, cell)
		}
		line := strings.Join(parts, "  ")
		if i == m.selected {
			line = selectedStyle.Render(line)
		}
		sb.WriteString(" " + line + "\n")
	}

	if len(rows) == 0 {
		sb.WriteString(missingStyle.Render("  No processes sampled") + "\n")
	}
	return sb.String()
}

// renderDetail renders every field of the selected row.
func (m model) renderDetail() string {
	r := m.detail
	var sb strings.Builder

	keyWidth := len(sched.PIDColumn)
	for _, f := range sched.Fields {
		keyWidth = max(keyWidth, len(f.Label(m.naming)))
	}
	kvLine := func(key, val string) {
		if val == sched.Missing {
			val = missingStyle.Render(val)
		}
		sb.WriteString(fmt.Sprintf("  %-*s  %s\n", keyWidth, key, val))
	}

	sb.WriteString(titleStyle.Render(fmt.Sprintf("  PID %d", r.PID)) + "\n")
	sb.WriteString(strings.Repeat("─", keyWidth+24) + "\n")
	for i, f := range sched.Fields {
		kvLine(f.Label(m.naming), r.Cells[i])
	}
	if len(r.Extra) > 0 {
		sb.WriteString(strings.Repeat("─", keyWidth+24) + "\n")
		for _, f := range r.Extra {
			kvLine(f.Key, f.Value)
		}
	}
	sb.WriteString(strings.Repeat("─", keyWidth+24) + "\n")
	sb.WriteString(helpStyle.Render(fmt.Sprintf("  %d/%d fields  [n] naming  [esc] close", r.Filled, sched.Width)))
	return sb.String()
}

// overlayCenter places an overlay panel in the center of the base view.
func (m model) overlayCenter(base, overlay string) string {
	box := boxStyle.Render(overlay)
	boxLines := strings.Split(box, "\n")
	boxWidth := lipgloss.Width(box)

	baseLines := strings.Split(base, "\n")
	startY := max((m.height-len(boxLines))/2, 0)
	startX := max((m.width-boxWidth)/2, 0)

	for len(baseLines) < startY+len(boxLines) {
		baseLines = append(baseLines, "")
	}
	pad := strings.Repeat(" ", startX)
	for i, line := range boxLines {
		baseLines[startY+i] = pad + line
	}
	if m.height > 0 && len(baseLines) > m.height {
		baseLines = baseLines[:m.height]
	}
	return strings.Join(baseLines, "\n")
}
