package compare

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/bft-labs/seqharness/internal/domain"
)

const maxLineBytes = 1 << 20

// ParseTrace reads a delimited trace: the first line is a header, '#' starts
// a comment, blank lines are ignored and every row has the same width.
func ParseTrace(r io.Reader) (domain.Trace, error) {
	sc := newScanner(r)
	var (
		trace domain.Trace
		width = -1
		line  = 0
	)
	for sc.Scan() {
		line++
		if line == 1 {
			continue
		}
		text := sc.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		cols := strings.Split(text, ",")
		if width < 0 {
			width = len(cols)
		} else if len(cols) != width {
			return nil, fmt.Errorf("line %d: %d columns, want %d", line, len(cols), width)
		}
		fields := make([]int64, len(cols))
		for i, c := range cols {
			v, err := parseField(c)
			if err != nil {
				return nil, fmt.Errorf("line %d column %d: %w", line, i, err)
			}
			fields[i] = v
		}
		trace = append(trace, domain.Row{Timestamp: fields[0], Values: fields[1:]})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return trace, nil
}

// Lines returns the raw lines after the header.
func Lines(r io.Reader) ([]string, error) {
	sc := newScanner(r)
	var out []string
	first := true
	for sc.Scan() {
		if first {
			first = false
			continue
		}
		out = append(out, sc.Text())
	}
	return out, sc.Err()
}

func newScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	return sc
}

// parseField accepts integers and integral floats such as "12.0" or "1e3".
func parseField(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("not an integer: %q", s)
	}
	return int64(f), nil
}
