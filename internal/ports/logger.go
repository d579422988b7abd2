package ports

import "github.com/bft-labs/seqharness/pkg/log"

// Logger is the structured logging port.
type Logger = log.Logger

// Field is a structured log field.
type Field = log.Field

// Field constructors.
var (
	String   = log.String
	Strings  = log.Strings
	Int      = log.Int
	Int64    = log.Int64
	Uint32   = log.Uint32
	Bool     = log.Bool
	Duration = log.Duration
	Stringer = log.Stringer
	Err      = log.Err
	Any      = log.Any
)
