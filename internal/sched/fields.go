package sched

import (
	"fmt"
	"strings"
)

// Naming selects which set of column labels a table is rendered with.
// It never changes the values or their order.
type Naming string

const (
	NamingShort Naming = "short"
	NamingLong  Naming = "long"
)

// ParseNaming accepts "short" or "long" (case-insensitive).
func ParseNaming(s string) (Naming, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "short":
		return NamingShort, nil
	case "long":
		return NamingLong, nil
	default:
		return "", fmt.Errorf("unknown format %q (expected \"short\" or \"long\")", s)
	}
}

// FieldDef names one scheduler field in both naming schemes.
type FieldDef struct {
	Long  string `json:"long"`
	Short string `json:"short"`
}

// Label returns the field's label under the given naming.
func (f FieldDef) Label(n Naming) string {
	if n == NamingLong {
		return f.Long
	}
	return f.Short
}

// PIDColumn is the label of the leading column in both schemes.
const PIDColumn = "PID"

// Fields is the canonical column order. It matches the order in which the
// kernel emits these entries in /proc/<pid>/sched.
var Fields = []FieldDef{
	{"se.exec_start", "EXEC_ST"},
	{"se.vruntime", "VRT"},
	{"se.sum_exec_runtime", "SERT"},
	{"se.nr_migrations", "NR_MIGRs"},
	{"nr_switches", "NR_SWs"},
	{"nr_voluntary_switches", "NR_VOL_SWs"},
	{"nr_involuntary_switches", "NR_INVOL_SWs"},
	{"se.load.weight", "LD_WT"},
	{"se.avg.load_sum", "LD_SUM"},
	{"se.avg.runnable_sum", "RUNNABLE_SUM"},
	{"se.avg.util_sum", "UTIL_SUM"},
	{"se.avg.load_avg", "LD_AVG"},
	{"se.avg.runnable_avg", "RUNNABLE_AVG"},
	{"se.avg.util_avg", "UTIL_AVG"},
	{"se.avg.last_update_time", "LAST_UPDT_TIME"},
	{"se.avg.util_est.ewma", "EWMA"},
	{"se.avg.util_est.enqueued", "ENQUEUED"},
	{"policy", "POLICY"},
	{"prio", "PRIO"},
	{"clock-delta", "CLK_DELTA"},
}

// Width is the number of scheduler columns (PID excluded).
var Width = len(Fields)

// Header returns PID followed by every field label under n.
func Header(n Naming) []string {
	h := make([]string, 0, len(Fields)+1)
	h = append(h, PIDColumn)
	for _, f := range Fields {
		h = append(h, f.Label(n))
	}
	return h
}

// fieldIndex maps a long field name to its column.
var fieldIndex = func() map[string]int {
	m := make(map[string]int, len(Fields))
	for i, f := range Fields {
		m[f.Long] = i
	}
	return m
}()

// IndexOf returns the column of a long field name, or -1.
func IndexOf(key string) int {
	if i, ok := fieldIndex[key]; ok {
		return i
	}
	return -1
}
