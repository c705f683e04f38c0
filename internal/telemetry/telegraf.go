package telemetry

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/7c/schedprobe/internal/sampler"
	"github.com/7c/schedprobe/internal/sched"
)

// maxDatagram keeps each UDP payload under typical MTU-friendly limits.
const maxDatagram = 8192

// TelegrafEmitter sends scheduler samples to Telegraf via UDP in InfluxDB line protocol.
type TelegrafEmitter struct {
	conn        *net.UDPConn
	measurement string
	hostname    string
}

// NewTelegrafEmitter creates a new emitter. addr is the resolved UDP address.
func NewTelegrafEmitter(addr *net.UDPAddr, measurement string) (*TelegrafEmitter, error) {
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("telegraf dial: %w", err)
	}
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "unknown"
	}
	return &TelegrafEmitter{
		conn:        conn,
		measurement: measurement,
		hostname:    hostname,
	}, nil
}

// Emit sends one line per sampled process and a cycle summary line.
// Lines are packed into datagrams of at most maxDatagram bytes.
func (e *TelegrafEmitter) Emit(res *sampler.Result) {
	if e == nil || e.conn == nil || res == nil {
		return
	}
	for _, payload := range pack(e.Lines(res), maxDatagram) {
		e.conn.Write([]byte(payload)) // fire-and-forget
	}
}

// Lines renders a cycle in line protocol.
func (e *TelegrafEmitter) Lines(res *sampler.Result) []string {
	now := res.Started.UnixNano()
	var lines []string
	for _, row := range res.Table.Rows {
		if l := e.rowLine(row, now); l != "" {
			lines = append(lines, l)
		}
	}
	lines = append(lines, fmt.Sprintf(
		"%s_cycle,host=%s enumerated=%di,resolved=%di,sampled=%di,diagnostics=%di,duration_seconds=%f %d",
		e.measurement,
		escapeTag(e.hostname),
		res.Enumerated, res.Resolved, res.Table.Len(), len(res.Diagnostics),
		res.Duration.Seconds(),
		now,
	))
	return lines
}

// rowLine returns "" for rows without any parsed value.
func (e *TelegrafEmitter) rowLine(row sched.Row, now int64) string {
	var fields []string
	for i, v := range row.Cells {
		if v == sched.Missing {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			continue
		}
		fields = append(fields, escapeTag(sched.Fields[i].Long)+"="+strconv.FormatFloat(f, 'f', -1, 64))
	}
	if len(fields) == 0 {
		return ""
	}
	return fmt.Sprintf("%s,host=%s,pid=%d %s %d",
		e.measurement, escapeTag(e.hostname), row.PID, strings.Join(fields, ","), now)
}

func pack(lines []string, limit int) []string {
	var (
		out []string
		b   strings.Builder
	)
	for _, l := range lines {
		if b.Len() > 0 && b.Len()+len(l)+1 > limit {
			out = append(out, b.String())
			b.Reset()
		}
		b.WriteString(l)
		b.WriteByte('\n')
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}

// Close closes the UDP connection.
func (e *TelegrafEmitter) Close() {
	if e != nil && e.conn != nil {
		e.conn.Close()
	}
}

// escapeTag escapes special characters in InfluxDB line protocol tag values.
func escapeTag(s string) string {
	s = strings.ReplaceAll(s, " ", "\\ ")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, "=", "\\=")
	return s
}
