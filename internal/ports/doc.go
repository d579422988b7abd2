// Package ports defines the interfaces between the test orchestrator and the
// infrastructure it drives.
//
// # Port Interfaces
//
//   - [Compiler]: Turns a sequence program into an instruction stream
//   - [Dialer] / [SequencerClient]: Command protocol over one connection
//   - [ProcessManager] / [Process]: Simulator subprocess lifecycle
//   - [TraceSource]: Readable trace artifact (file or in-memory)
//   - [ReportRepository]: Persists the latest run report
//   - [Logger]: Structured logging abstraction
//
// The application layer (internal/app) depends only on these interfaces.
// Adapters under internal/adapters implement them with sockets, os/exec and
// the file system, which keeps orchestration testable with fakes.
package ports
