package domain

import (
	"errors"
	"fmt"
)

// CommandKind enumerates the commands a harness can send.
type CommandKind int

const (
	CommandRunSequence CommandKind = iota + 1
	CommandShutdown
)

// RunSequenceName is the wire name of the run-sequence command.
const RunSequenceName = "run_seq"

// String returns the wire name of the command kind.
func (k CommandKind) String() string {
	switch k {
	case CommandRunSequence:
		return RunSequenceName
	case CommandShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// Command is a request to the sequencer. The zero value is not a valid
// command; use RunSequence or Shutdown.
type Command struct {
	kind    CommandKind
	payload []byte
}

// ErrEmptySequence is returned when a run-sequence payload is empty.
var ErrEmptySequence = errors.New("run sequence: empty instruction stream")

// RunSequence builds a run-sequence command from a binary instruction stream.
// The payload must be a whole number of 32-bit words.
func RunSequence(payload []byte) (Command, error) {
	if len(payload) == 0 {
		return Command{}, ErrEmptySequence
	}
	if len(payload)%4 != 0 {
		return Command{}, fmt.Errorf("run sequence: payload of %d bytes is not word aligned", len(payload))
	}
	b := make([]byte, len(payload))
	copy(b, payload)
	return Command{kind: CommandRunSequence, payload: b}, nil
}

// Shutdown builds the zero-payload shutdown command.
func Shutdown() Command {
	return Command{kind: CommandShutdown}
}

// Kind reports which command this is.
func (c Command) Kind() CommandKind { return c.kind }

// Name returns the wire name.
func (c Command) Name() string { return c.kind.String() }

// Payload returns the raw payload bytes. Empty for shutdown.
func (c Command) Payload() []byte { return c.payload }

// Valid reports whether the command was built by one of the constructors.
func (c Command) Valid() bool {
	return c.kind == CommandRunSequence || c.kind == CommandShutdown
}
