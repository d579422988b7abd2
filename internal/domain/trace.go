package domain

import (
	"strconv"
	"strings"
)

// Row is one trace sample: a timestamp followed by opaque channel values.
type Row struct {
	Timestamp int64
	Values    []int64
}

// Fields returns the row as a flat slice, timestamp first.
func (r Row) Fields() []int64 {
	out := make([]int64, 0, len(r.Values)+1)
	out = append(out, r.Timestamp)
	return append(out, r.Values...)
}

// String renders the row the way it appears in a trace file.
func (r Row) String() string {
	parts := make([]string, 0, len(r.Values)+1)
	for _, v := range r.Fields() {
		parts = append(parts, strconv.FormatInt(v, 10))
	}
	return strings.Join(parts, ",")
}

// Clone returns a deep copy of the row.
func (r Row) Clone() Row {
	v := make([]int64, len(r.Values))
	copy(v, r.Values)
	return Row{Timestamp: r.Timestamp, Values: v}
}

// Trace is an ordered sequence of rows. Row 0 carries the sentinel timestamp.
type Trace []Row

// Clone returns a deep copy of the trace.
func (t Trace) Clone() Trace {
	if t == nil {
		return nil
	}
	out := make(Trace, len(t))
	for i, r := range t {
		out[i] = r.Clone()
	}
	return out
}

// Messages are the human-readable diagnostics returned with a reply.
type Messages struct {
	Infos    []string `json:"infos,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
	Errors   []string `json:"errors,omitempty"`
}

// Empty reports whether there are no messages at all.
func (m Messages) Empty() bool {
	return len(m.Infos) == 0 && len(m.Warnings) == 0 && len(m.Errors) == 0
}

// Reply is the structured answer to a command.
type Reply struct {
	Return   map[string]interface{}
	Trace    Trace
	Messages Messages
}
