package loopback

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bft-labs/seqharness/internal/compiler"
	"github.com/bft-labs/seqharness/internal/domain"
)

// Header returns the trace header line fields.
func Header() []string {
	return append([]string{"tick"}, domain.BufferNames()...)
}

// Render plays an instruction stream back into an output trace. Row 0 holds
// the initial buffer values at tick 0. Each later row is the state of all
// buffers after the writes landing on one output tick; a write lands at its
// issue tick plus the buffer latency, shifted by offset.
func Render(words []uint32, latencies [domain.BufferCount]uint32, offset uint32) (domain.Trace, error) {
	p, err := compiler.Decode(words, latencies)
	if err != nil {
		return nil, err
	}

	state := make([]int64, domain.BufferCount)
	for i, v := range p.InitialBufs {
		state[i] = int64(v)
	}
	trace := domain.Trace{{Timestamp: 0, Values: append([]int64(nil), state...)}}

	writes := p.Writes
	sort.SliceStable(writes, func(a, b int) bool {
		return writes[a].Timestamp < writes[b].Timestamp
	})
	for i := 0; i < len(writes); {
		tick := writes[i].Timestamp
		for ; i < len(writes) && writes[i].Timestamp == tick; i++ {
			state[writes[i].Buffer] = int64(writes[i].Value)
		}
		trace = append(trace, domain.Row{
			Timestamp: int64(offset) + int64(tick),
			Values:    append([]int64(nil), state...),
		})
	}
	return trace, nil
}

// WriteCSV writes the trace with a header line.
func WriteCSV(w io.Writer, t domain.Trace) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintln(bw, strings.Join(Header(), ",")); err != nil {
		return err
	}
	for _, r := range t {
		if _, err := fmt.Fprintln(bw, r.String()); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// writeCSVFile writes the trace to path via a temp file so a reader never
// sees a partial trace.
func writeCSVFile(path string, t domain.Trace) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := WriteCSV(f, t); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
