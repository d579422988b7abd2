package ports

import "github.com/bft-labs/seqharness/internal/domain"

// Compiler turns a program into an instruction stream.
// Malformed programs fail with *domain.CompileError.
type Compiler interface {
	Compile(p domain.Program) ([]uint32, error)
}

// CompilerFunc adapts a function to Compiler.
type CompilerFunc func(p domain.Program) ([]uint32, error)

// Compile calls f(p).
func (f CompilerFunc) Compile(p domain.Program) ([]uint32, error) { return f(p) }
