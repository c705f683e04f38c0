package procscan

import (
	"bufio"
	"bytes"
	"errors"
	"strconv"
	"strings"
)

var errNoPID = errors.New("first token is not a process id")

// ParseListing extracts process ids from process-listing text, one per line,
// taken from the first whitespace-delimited token. Lines without a numeric
// leading token are reported and skipped. Source order is preserved.
func ParseListing(text []byte) ([]int, Diagnostics) {
	var (
		pids  []int
		diags Diagnostics
	)
	sc := bufio.NewScanner(bytes.NewReader(text))
	sc.Buffer(make([]byte, 0, 4096), 1024*1024)
	n := 0
	for sc.Scan() {
		n++
		line := sc.Text()
		pid, ok := leadingPID(line)
		if !ok {
			diags = append(diags, &Diagnostic{
				Kind: KindDiscoveryParse,
				Line: n,
				Text: strings.TrimSpace(line),
				Err:  errNoPID,
			})
			continue
		}
		pids = append(pids, pid)
	}
	return pids, diags
}

// leadingPID parses the first token of line as a positive decimal integer.
func leadingPID(line string) (int, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return 0, false
	}
	tok := fields[0]
	for i := 0; i < len(tok); i++ {
		if tok[i] < '0' || tok[i] > '9' {
			return 0, false
		}
	}
	pid, err := strconv.Atoi(tok)
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

// stripHeader drops every line up to and including the first one whose
// first token equals token. Text without such a line is returned unchanged.
func stripHeader(text []byte, token string) []byte {
	if token == "" {
		return text
	}
	rest := text
	for len(rest) > 0 {
		line := rest
		next := []byte(nil)
		if i := bytes.IndexByte(rest, '\n'); i >= 0 {
			line, next = rest[:i], rest[i+1:]
		}
		if f := bytes.Fields(line); len(f) > 0 && string(f[0]) == token {
			return next
		}
		rest = next
	}
	return text
}
