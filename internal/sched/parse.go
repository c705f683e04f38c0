package sched

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"unicode"
)

// ErrNoSeparator is reported when a file never reaches its dashed header
// separator, so no data line is ever considered.
var ErrNoSeparator = errors.New("header separator line not found")

// separatorChar is the character the header separator line is made of.
const separatorChar = '-'

// numericLiteral matches decimal integers and floating point literals.
// NaN, Inf and hex forms are not scheduler values.
var numericLiteral = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// Field is one accepted "key : value" entry.
type Field struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Record is the ordered list of fields accepted from one scheduler file.
type Record []Field

// Values returns the field values in file order.
func (r Record) Values() []string {
	out := make([]string, len(r))
	for i, f := range r {
		out[i] = f.Value
	}
	return out
}

// LineError describes a data line that was skipped.
type LineError struct {
	Line   int    `json:"line"` // 1-based line number in the file
	Text   string `json:"text"` // raw line, trailing newline removed
	Reason string `json:"reason"`
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %s: %q", e.Line, e.Reason, e.Text)
}

// Result is the output of parsing one scheduler file.
type Result struct {
	Record  Record       `json:"record"`
	Skipped []*LineError `json:"skipped,omitempty"`
	// HeaderFound is false when the separator line never appeared.
	HeaderFound bool `json:"header_found"`
}

// Parse reads a /proc/<pid>/sched body. Lines up to and including the
// separator line are header. Malformed data lines are skipped and reported in
// Result.Skipped; the returned error is only set for read failures.
func Parse(r io.Reader) (*Result, error) {
	res := &Result{}
	br := bufio.NewReaderSize(r, 4096)

	n := 0
	for {
		raw, tooLong, err := readLine(br)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		n++
		line := string(raw)
		switch {
		case !res.HeaderFound:
			if !tooLong && isSeparator(line) {
				res.HeaderFound = true
			}
		case tooLong:
			res.Skipped = append(res.Skipped, &LineError{
				Line: n, Text: line, Reason: fmt.Sprintf("line exceeds %d bytes", MaxLineLen),
			})
		default:
			f, reason := parseDataLine(line)
			if reason != "" {
				res.Skipped = append(res.Skipped, &LineError{Line: n, Text: line, Reason: reason})
				continue
			}
			res.Record = append(res.Record, f)
		}
	}
	return res, nil
}

// MaxLineLen bounds one line of a scheduler file. Longer lines are skipped
// without dropping the rest of the file.
const MaxLineLen = 1024 * 1024

// maxLineText is how much of an over-long line is kept in its LineError.
const maxLineText = 64

// readLine returns the next line without its line ending. tooLong reports
// that the line exceeded MaxLineLen; the remainder is discarded and only a
// prefix is returned. io.EOF is only returned once no line is pending.
func readLine(br *bufio.Reader) (line []byte, tooLong bool, err error) {
	for {
		chunk, isPrefix, err := br.ReadLine()
		if err != nil {
			if err == io.EOF && line != nil {
				return line, tooLong, nil
			}
			return line, tooLong, err
		}
		if line == nil {
			line = []byte{}
		}
		switch {
		case tooLong:
		case len(line)+len(chunk) > MaxLineLen:
			tooLong = true
			line = append(line, chunk...)[:maxLineText]
		default:
			line = append(line, chunk...)
		}
		if !isPrefix {
			return line, tooLong, nil
		}
	}
}

// ParseFile opens path and parses it. A vanished process surfaces as an
// error wrapping fs.ErrNotExist.
func ParseFile(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	res, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return res, nil
}

// isSeparator reports whether line consists only of dashes.
func isSeparator(line string) bool {
	line = strings.TrimRightFunc(line, unicode.IsSpace)
	if line == "" {
		return false
	}
	for i := 0; i < len(line); i++ {
		if line[i] != separatorChar {
			return false
		}
	}
	return true
}

// parseDataLine strips every whitespace character and splits on ':'.
// It returns a non-empty reason when the line is rejected.
func parseDataLine(line string) (Field, string) {
	compact := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, line)

	parts := strings.Split(compact, ":")
	if len(parts) != 2 {
		return Field{}, fmt.Sprintf("expected 1 separator, found %d", len(parts)-1)
	}
	if !numericLiteral.MatchString(parts[1]) {
		return Field{}, "value is not numeric"
	}
	return Field{Key: parts[0], Value: parts[1]}, ""
}
