package ports

import (
	"context"
	"time"

	"github.com/bft-labs/seqharness/internal/domain"
)

// Process is a started simulator.
type Process interface {
	// Pid returns the operating system process id.
	Pid() int

	// AwaitExit blocks up to timeout for the process to exit.
	AwaitExit(timeout time.Duration) domain.ExitOutcome

	// Kill force-terminates and reaps the process. Idempotent.
	Kill() error
}

// ProcessManager starts simulators. Failures are *domain.LaunchError.
type ProcessManager interface {
	Start(ctx context.Context, path string, args []string) (Process, error)
}
