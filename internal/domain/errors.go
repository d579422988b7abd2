package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrProcessTimedOut is returned when the simulator does not exit in time
	// after shutdown was requested.
	ErrProcessTimedOut = errors.New("simulator did not exit after shutdown")

	// ErrInvalidTransition is returned for a stage change the state machine forbids.
	ErrInvalidTransition = errors.New("invalid stage transition")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// CompileErrorKind categorizes malformed sequence programs.
type CompileErrorKind string

const (
	CompileUnknownBuffer    CompileErrorKind = "UNKNOWN_BUFFER"
	CompileNonMonotonic     CompileErrorKind = "NON_MONOTONIC"
	CompileBufferCount      CompileErrorKind = "BUFFER_COUNT"
	CompileValueOverflow    CompileErrorKind = "VALUE_OVERFLOW"
	CompileLatencyUnderflow CompileErrorKind = "LATENCY_UNDERFLOW"
	CompileMalformed        CompileErrorKind = "MALFORMED"
)

// CompileError reports a malformed sequence program.
type CompileError struct {
	Kind   CompileErrorKind
	Buffer int // offending buffer id, -1 if not applicable
	Index  int // offending write index, -1 if not applicable
	Msg    string
}

func (e *CompileError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("compile %s: write %d: %s", e.Kind, e.Index, e.Msg)
	}
	return fmt.Sprintf("compile %s: %s", e.Kind, e.Msg)
}

// ProtocolError reports a transport or framing failure.
type ProtocolError struct {
	Op      string // "write", "read", "decode", "dial"
	Timeout bool
	Err     error
}

func (e *ProtocolError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("protocol %s: timeout: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("protocol %s: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// LaunchError reports a simulator that could not be started.
type LaunchError struct {
	Path string
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch %s: %v", e.Path, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// ComparisonMismatch reports traces that differ after normalization.
type ComparisonMismatch struct {
	Strategy   string
	Divergence Divergence
}

func (e *ComparisonMismatch) Error() string {
	return fmt.Sprintf("%s trace mismatch at %s", e.Strategy, e.Divergence)
}

// StageError attaches the failing stage to an infrastructure error.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// IsCompileError reports whether err wraps a CompileError.
func IsCompileError(err error) bool {
	var ce *CompileError
	return errors.As(err, &ce)
}

// IsProtocolError reports whether err wraps a ProtocolError.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

// IsLaunchError reports whether err wraps a LaunchError.
func IsLaunchError(err error) bool {
	var le *LaunchError
	return errors.As(err, &le)
}

// IsMismatch reports whether err wraps a ComparisonMismatch.
func IsMismatch(err error) bool {
	var m *ComparisonMismatch
	return errors.As(err, &m)
}
