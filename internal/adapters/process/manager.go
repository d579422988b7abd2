package process

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/bft-labs/seqharness/internal/domain"
	"github.com/bft-labs/seqharness/internal/ports"
	"github.com/bft-labs/seqharness/pkg/log"
)

// waitDelay bounds how long Wait keeps copying output after the child exits.
const waitDelay = 500 * time.Millisecond

// Manager starts simulator processes.
type Manager struct {
	logger ports.Logger
	env    []string
}

// NewManager creates a Manager that logs child output to logger.
// Extra environment entries are appended to the parent's environment.
func NewManager(logger ports.Logger, env ...string) *Manager {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Manager{logger: logger, env: env}
}

// Start launches path with args. The returned process must be reaped
// with AwaitExit or Kill.
func (m *Manager) Start(ctx context.Context, path string, args []string) (ports.Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, &domain.LaunchError{Path: path, Err: err}
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, &domain.LaunchError{Path: path, Err: err}
	}
	if info.IsDir() {
		return nil, &domain.LaunchError{Path: path, Err: errors.New("is a directory")}
	}

	cmd := exec.Command(path, args...)
	if len(m.env) > 0 {
		cmd.Env = append(os.Environ(), m.env...)
	}
	logger := m.logger.With(log.String("simulator", path))
	stdout := newLineWriter(logger, "stdout")
	stderr := newLineWriter(logger, "stderr")
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay

	if err := cmd.Start(); err != nil {
		return nil, &domain.LaunchError{Path: path, Err: err}
	}

	h := &Handle{
		cmd:    cmd,
		logger: logger,
		done:   make(chan struct{}),
	}
	go func() {
		h.waitErr = cmd.Wait()
		stdout.Flush()
		stderr.Flush()
		close(h.done)
	}()

	logger.Debug("simulator started",
		log.Int("pid", cmd.Process.Pid),
		log.Strings("args", args),
	)
	return h, nil
}

// Handle is a running simulator. A background goroutine reaps the child as
// soon as it exits.
type Handle struct {
	cmd      *exec.Cmd
	logger   ports.Logger
	done     chan struct{}
	waitErr  error
	killOnce sync.Once
	killErr  error
}

// Pid returns the child's process id.
func (h *Handle) Pid() int {
	return h.cmd.Process.Pid
}

// AwaitExit waits up to timeout for the child to exit. On timeout the child
// is still running and the caller must Kill it.
func (h *Handle) AwaitExit(timeout time.Duration) domain.ExitOutcome {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-h.done:
		return domain.ExitOutcome{Code: h.exitCode()}
	case <-timer.C:
		return domain.ExitOutcome{TimedOut: true}
	}
}

// Kill terminates the child if it is still running and waits for it to be
// reaped. Later calls return the first result.
func (h *Handle) Kill() error {
	h.killOnce.Do(func() {
		select {
		case <-h.done:
			return
		default:
		}
		if err := h.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			h.killErr = fmt.Errorf("kill simulator: %w", err)
			return
		}
		<-h.done
		h.logger.Debug("simulator killed", log.Int("pid", h.cmd.Process.Pid))
	})
	return h.killErr
}

// Exited reports whether the child has been reaped.
func (h *Handle) Exited() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

func (h *Handle) exitCode() int {
	if ps := h.cmd.ProcessState; ps != nil {
		return ps.ExitCode()
	}
	var ee *exec.ExitError
	if errors.As(h.waitErr, &ee) {
		return ee.ExitCode()
	}
	return -1
}

var _ ports.ProcessManager = (*Manager)(nil)
var _ ports.Process = (*Handle)(nil)
