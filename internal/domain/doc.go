// Package domain contains the core data model of the harness.
//
// It has no dependencies on sockets, processes, files or logging and holds
// only the values that flow between the compiler, the protocol client, the
// comparison engine and the orchestrator.
//
// # Entities
//
//   - [Program]: timestamped buffer writes plus per-buffer initial values and latencies
//   - [Command]: the closed set of requests sent to a simulator or controller
//   - [Reply]: what came back for a command (return values, trace rows, messages)
//   - [Trace]: ordered output rows, row 0 being the sentinel/header row
//   - [Outcome]: the verdict of one test case
//
// # Errors
//
// Infrastructure failures ([CompileError], [ProtocolError], [LaunchError],
// [ErrProcessTimedOut]) mark a case Errored. Only [ComparisonMismatch]
// marks it Failed.
package domain
