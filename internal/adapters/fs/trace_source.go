package fs

import (
	"bytes"
	"io"
	"os"
	"strings"

	"github.com/bft-labs/seqharness/internal/domain"
	"github.com/bft-labs/seqharness/internal/ports"
)

// FileSource reads a trace from disk each time it is opened.
type FileSource struct {
	path string
}

// File returns a source for the trace at path.
func File(path string) FileSource {
	return FileSource{path: path}
}

// Name returns the path.
func (f FileSource) Name() string { return f.path }

// Open opens the file.
func (f FileSource) Open() (io.ReadCloser, error) { return os.Open(f.path) }

// BytesSource is an in-memory trace.
type BytesSource struct {
	name string
	data []byte
}

// Bytes returns a source over data.
func Bytes(name string, data []byte) BytesSource {
	return BytesSource{name: name, data: data}
}

// Name returns the label given to Bytes.
func (b BytesSource) Name() string { return b.name }

// Open returns a reader over the data.
func (b BytesSource) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b.data)), nil
}

// FromTrace renders rows in trace file format under a header line.
func FromTrace(name string, header []string, t domain.Trace) BytesSource {
	var buf bytes.Buffer
	buf.WriteString(strings.Join(header, ","))
	buf.WriteByte('\n')
	for _, r := range t {
		buf.WriteString(r.String())
		buf.WriteByte('\n')
	}
	return Bytes(name, buf.Bytes())
}

var (
	_ ports.TraceSource = FileSource{}
	_ ports.TraceSource = BytesSource{}
)
