package process

import (
	"bytes"
	"sync"

	"github.com/bft-labs/seqharness/internal/ports"
	"github.com/bft-labs/seqharness/pkg/log"
)

// maxLine caps a buffered partial line.
const maxLine = 64 * 1024

// lineWriter forwards complete output lines to the logger at debug level.
type lineWriter struct {
	mu     sync.Mutex
	logger ports.Logger
	stream string
	buf    bytes.Buffer
}

func newLineWriter(logger ports.Logger, stream string) *lineWriter {
	return &lineWriter{logger: logger, stream: stream}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		i := bytes.IndexByte(w.buf.Bytes(), '\n')
		if i < 0 {
			break
		}
		line := string(bytes.TrimRight(w.buf.Next(i+1), "\r\n"))
		w.emit(line)
	}
	if w.buf.Len() > maxLine {
		w.emit(w.buf.String())
		w.buf.Reset()
	}
	return len(p), nil
}

// Flush emits any trailing partial line.
func (w *lineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf.Len() > 0 {
		w.emit(w.buf.String())
		w.buf.Reset()
	}
}

func (w *lineWriter) emit(line string) {
	w.logger.Debug(line, log.String("stream", w.stream))
}
