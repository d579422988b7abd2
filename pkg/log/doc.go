// Package log provides the logging abstraction used across seqharness.
//
// Components log through the Logger interface so that the orchestrator,
// protocol client and process manager never depend on a concrete logging
// library. A zerolog-backed implementation is used by the CLI and a no-op
// logger by tests.
//
// # Usage
//
//	logger := log.NewConsoleLogger(os.Stderr, verbose)
//	caseLog := logger.With(log.String("case", "fhdo_single"))
//	caseLog.Info("stage change", log.String("to", "Running"))
//
// In verbose mode the console logger emits debug records with the caller
// location; otherwise only warnings and errors are printed, matching the
// quiet default of the command line tools.
package log
