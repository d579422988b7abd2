package ports

import "io"

// TraceSource is a readable trace artifact.
type TraceSource interface {
	// Name identifies the source in diagnostics.
	Name() string

	// Open returns a fresh reader over the full contents.
	Open() (io.ReadCloser, error)
}
