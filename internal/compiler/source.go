package compiler

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bft-labs/seqharness/internal/domain"
)

// FromCSV builds a program from a trace-shaped table: a header line, then
// rows of "tick,buf0,...,bufN-1". The first data row supplies the initial
// buffer values; every later row produces a write for each buffer whose
// value changed.
func FromCSV(r io.Reader) (domain.Program, error) {
	var p domain.Program
	var state [domain.BufferCount]uint32

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	row := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if line == 1 || text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		cols := strings.Split(text, ",")
		if len(cols) != domain.BufferCount+1 {
			return p, &domain.CompileError{
				Kind:   domain.CompileBufferCount,
				Buffer: -1,
				Index:  -1,
				Msg:    fmt.Sprintf("line %d: %d columns, want tick plus %d buffers", line, len(cols), domain.BufferCount),
			}
		}
		vals := make([]uint32, len(cols))
		for i, c := range cols {
			v, err := parseWord(c)
			if err != nil {
				return p, &domain.CompileError{
					Kind:   domain.CompileMalformed,
					Buffer: i - 1,
					Index:  -1,
					Msg:    fmt.Sprintf("line %d column %d: %v", line, i, err),
				}
			}
			vals[i] = v
		}

		tick := vals[0]
		if row == 0 {
			for b := 0; b < domain.BufferCount; b++ {
				if vals[b+1] > domain.MaxBufferValue {
					return p, &domain.CompileError{
						Kind:   domain.CompileValueOverflow,
						Buffer: b,
						Index:  -1,
						Msg:    fmt.Sprintf("line %d: initial %s %#x", line, domain.BufferName(b), vals[b+1]),
					}
				}
				p.InitialBufs[b] = uint16(vals[b+1])
				state[b] = vals[b+1]
			}
		} else {
			for b := 0; b < domain.BufferCount; b++ {
				if vals[b+1] == state[b] {
					continue
				}
				state[b] = vals[b+1]
				p.Writes = append(p.Writes, domain.BufferWrite{Buffer: b, Timestamp: tick, Value: vals[b+1]})
			}
		}
		row++
	}
	if err := sc.Err(); err != nil {
		return p, fmt.Errorf("read program csv: %w", err)
	}
	return p, nil
}

// Series is the time/value list of one buffer in a dictionary program.
type Series struct {
	Times  []uint32 `yaml:"times" json:"times"`
	Values []uint32 `yaml:"values" json:"values"`
}

// Dict maps buffer names (or decimal ids) to their write series.
type Dict map[string]Series

// FromDict builds a program from a per-buffer dictionary. Each buffer's times
// must strictly increase. Writes are ordered by time, then buffer id.
func FromDict(d Dict) (domain.Program, error) {
	var p domain.Program

	names := make([]string, 0, len(d))
	for name := range d {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		s := d[name]
		id, err := domain.BufferIndex(name)
		if err != nil {
			return p, &domain.CompileError{
				Kind:   domain.CompileUnknownBuffer,
				Buffer: -1,
				Index:  -1,
				Msg:    err.Error(),
			}
		}
		if len(s.Times) != len(s.Values) {
			return p, &domain.CompileError{
				Kind:   domain.CompileMalformed,
				Buffer: id,
				Index:  -1,
				Msg:    fmt.Sprintf("%s: %d times but %d values", name, len(s.Times), len(s.Values)),
			}
		}
		for i := range s.Times {
			if i > 0 && s.Times[i] <= s.Times[i-1] {
				return p, &domain.CompileError{
					Kind:   domain.CompileNonMonotonic,
					Buffer: id,
					Index:  i,
					Msg:    fmt.Sprintf("%s: time %d does not follow time %d", name, s.Times[i], s.Times[i-1]),
				}
			}
			p.Writes = append(p.Writes, domain.BufferWrite{Buffer: id, Timestamp: s.Times[i], Value: s.Values[i]})
		}
	}

	sort.SliceStable(p.Writes, func(a, b int) bool {
		if p.Writes[a].Timestamp != p.Writes[b].Timestamp {
			return p.Writes[a].Timestamp < p.Writes[b].Timestamp
		}
		return p.Writes[a].Buffer < p.Writes[b].Buffer
	})
	return p, nil
}

// dictFile is the on-disk layout of a dictionary program.
type dictFile struct {
	Buffers Dict `yaml:"buffers"`
}

// LoadProgramFile reads a program from a .csv table or a .yaml/.yml dictionary.
func LoadProgramFile(path string) (domain.Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Program{}, fmt.Errorf("read program: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		return FromCSV(bytes.NewReader(data))
	case ".yaml", ".yml":
		var df dictFile
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&df); err != nil {
			return domain.Program{}, fmt.Errorf("parse program %s: %w", path, err)
		}
		return FromDict(df.Buffers)
	default:
		return domain.Program{}, fmt.Errorf("unsupported program format %q", ext)
	}
}

// parseWord accepts plain integers and integral floats such as "12.0".
func parseWord(s string) (uint32, error) {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseUint(s, 10, 32); err == nil {
		return uint32(v), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	if f < 0 || f != float64(uint32(f)) {
		return 0, fmt.Errorf("not an unsigned 32-bit integer: %q", s)
	}
	return uint32(f), nil
}
