package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/bft-labs/seqharness/internal/adapters/fs"
	"github.com/bft-labs/seqharness/internal/adapters/process"
	"github.com/bft-labs/seqharness/internal/compare"
	"github.com/bft-labs/seqharness/internal/compiler"
	"github.com/bft-labs/seqharness/internal/domain"
	"github.com/bft-labs/seqharness/internal/ports"
)

// Default timeouts.
const (
	DefaultConnectTimeout = 5 * time.Second
	DefaultExitTimeout    = time.Second
)

// Options configures an Orchestrator.
type Options struct {
	// Addr is the server address, host:port.
	Addr string

	// SimulatorPath is the simulator executable. Empty means the server at
	// Addr is already running and is not managed by the harness.
	SimulatorPath string
	SimulatorArgs []string

	// TraceCSV is where the simulator writes its output trace. Empty means
	// the trace is taken from the run reply.
	TraceCSV string
	TraceFST string

	ConnectTimeout time.Duration
	ExitTimeout    time.Duration
	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

func (o Options) managed() bool { return o.SimulatorPath != "" }

// ProgramSource produces the program of a case.
type ProgramSource func() (domain.Program, error)

// TestContext is everything one case needs. It is passed explicitly through
// compile and run; nothing about a case lives in package state.
type TestContext struct {
	Case      string
	Program   ProgramSource
	Board     compiler.Board
	Reference ports.TraceSource
	Strategy  compare.Strategy
}

// Orchestrator runs test cases end to end.
type Orchestrator struct {
	opts     Options
	compiler ports.Compiler
	dialer   ports.Dialer
	procs    ports.ProcessManager
	logger   ports.Logger
	emitter  EventEmitter
}

// NewOrchestrator wires an orchestrator. procs may be nil when no simulator
// is managed; emitter may be nil.
func NewOrchestrator(opts Options, c ports.Compiler, d ports.Dialer, procs ports.ProcessManager, logger ports.Logger, emitter EventEmitter) *Orchestrator {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	if opts.ExitTimeout <= 0 {
		opts.ExitTimeout = DefaultExitTimeout
	}
	return &Orchestrator{
		opts:     opts,
		compiler: c,
		dialer:   d,
		procs:    procs,
		logger:   logger,
		emitter:  emitter,
	}
}

// caseRun holds the resources one case owns.
type caseRun struct {
	tc           TestContext
	lc           *Lifecycle
	logger       ports.Logger
	client       ports.SequencerClient
	proc         ports.Process
	shutdownSent bool
	reply        domain.Reply
	stage        domain.Stage
}

// Run executes one case. Infrastructure problems yield StatusErrored, a
// trace mismatch StatusFailed. A panic is reported as errored in the stage
// it happened in. The simulator and connection are released on every path.
func (o *Orchestrator) Run(ctx context.Context, tc TestContext) (out domain.Outcome) {
	start := time.Now()
	logger := o.logger.With(ports.String("case", tc.Case))
	r := &caseRun{
		tc:     tc,
		lc:     NewLifecycle(tc.Case, logger, o.emitter),
		logger: logger,
	}
	defer o.teardown(r)
	defer func() {
		if p := recover(); p != nil {
			out = o.errored(r, fmt.Errorf("panic: %v", p))
			o.finish(&out, r, start)
		}
	}()

	out = o.run(ctx, r)
	o.finish(&out, r, start)
	return out
}

func (o *Orchestrator) finish(out *domain.Outcome, r *caseRun, start time.Time) {
	out.Case = r.tc.Case
	out.Messages = r.reply.Messages
	out.Duration = time.Since(start)
}

func (o *Orchestrator) run(ctx context.Context, r *caseRun) domain.Outcome {
	cmd, err := o.compile(r)
	if err != nil {
		return o.errored(r, err)
	}
	if err := o.connect(ctx, r); err != nil {
		return o.errored(r, err)
	}
	if err := o.execute(ctx, r, cmd); err != nil {
		return o.errored(r, err)
	}
	if err := o.shutdown(ctx, r); err != nil {
		return o.errored(r, err)
	}
	if err := o.awaitExit(r); err != nil {
		return o.errored(r, err)
	}
	return o.compare(r)
}

func (o *Orchestrator) enter(r *caseRun, s domain.Stage, reason string) error {
	if err := r.lc.TransitionTo(s, reason); err != nil {
		return err
	}
	r.stage = s
	return nil
}

func (o *Orchestrator) compile(r *caseRun) (domain.Command, error) {
	if err := o.enter(r, domain.StageCompiling, "compile program"); err != nil {
		return domain.Command{}, err
	}
	if r.tc.Program == nil {
		return domain.Command{}, errors.New("case has no program")
	}
	prog, err := r.tc.Program()
	if err != nil {
		return domain.Command{}, fmt.Errorf("load program: %w", err)
	}
	prog = r.tc.Board.Apply(prog)
	words, err := o.compiler.Compile(prog)
	if err != nil {
		return domain.Command{}, err
	}
	r.logger.Debug("program compiled",
		ports.Int("writes", len(prog.Writes)),
		ports.Int("words", len(words)),
		ports.String("board", r.tc.Board.Name),
	)
	return domain.RunSequence(compiler.Bytes(words))
}

func (o *Orchestrator) connect(ctx context.Context, r *caseRun) error {
	// failures from here on are reported against the stage being entered
	r.stage = domain.StageConnected
	if o.opts.managed() {
		if err := o.startSimulator(ctx, r); err != nil {
			return err
		}
	}

	dctx, cancel := context.WithTimeout(ctx, o.opts.ConnectTimeout)
	defer cancel()

	b := newBackoff(o.opts.BackoffInitial, o.opts.BackoffMax)
	attempts := 0
	for {
		attempts++
		c, err := o.dialer.Dial(dctx, o.opts.Addr)
		if err == nil {
			r.client = c
			break
		}
		// an external server is either up or not
		if !o.opts.managed() {
			return err
		}
		if serr := b.Sleep(dctx); serr != nil {
			return fmt.Errorf("connect to %s after %d attempts: %w", o.opts.Addr, attempts, err)
		}
	}
	return o.enter(r, domain.StageConnected, fmt.Sprintf("connected after %d attempts", attempts))
}

func (o *Orchestrator) startSimulator(ctx context.Context, r *caseRun) error {
	if o.procs == nil {
		return errors.New("no process manager for managed simulator")
	}
	if o.opts.TraceCSV != "" {
		// a trace left over from an earlier case must not be compared
		if err := os.Remove(o.opts.TraceCSV); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove stale trace: %w", err)
		}
	}
	_, port, _ := net.SplitHostPort(o.opts.Addr)
	args := process.ExpandArgs(o.opts.SimulatorArgs, process.Vars{
		CSV:   o.opts.TraceCSV,
		FST:   o.opts.TraceFST,
		Port:  port,
		Addr:  o.opts.Addr,
		Board: r.tc.Board.Name,
	})
	p, err := o.procs.Start(ctx, o.opts.SimulatorPath, args)
	if err != nil {
		return err
	}
	r.proc = p
	return nil
}

func (o *Orchestrator) execute(ctx context.Context, r *caseRun, cmd domain.Command) error {
	if err := o.enter(r, domain.StageRunning, "run sequence"); err != nil {
		return err
	}
	reply, err := r.client.Command(ctx, cmd)
	if err != nil {
		return err
	}
	r.reply = reply
	for _, m := range reply.Messages.Infos {
		r.logger.Debug("server info", ports.String("msg", m))
	}
	for _, m := range reply.Messages.Warnings {
		r.logger.Warn("server warning", ports.String("msg", m))
	}
	for _, m := range reply.Messages.Errors {
		r.logger.Error("server error", ports.String("msg", m))
	}
	return nil
}

func (o *Orchestrator) shutdown(ctx context.Context, r *caseRun) error {
	if err := o.enter(r, domain.StageShutdownRequested, "request shutdown"); err != nil {
		return err
	}
	if o.opts.managed() {
		r.shutdownSent = true
		if err := r.client.Shutdown(ctx); err != nil {
			// the simulator may already be gone; AwaitExit decides
			r.logger.Warn("shutdown not delivered", ports.Err(err))
		}
	}
	if err := r.client.Close(); err != nil {
		r.logger.Debug("close connection", ports.Err(err))
	}
	return nil
}

func (o *Orchestrator) awaitExit(r *caseRun) error {
	if err := o.enter(r, domain.StageAwaitingExit, "await simulator exit"); err != nil {
		return err
	}
	if r.proc == nil {
		return nil
	}
	ex := r.proc.AwaitExit(o.opts.ExitTimeout)
	if ex.TimedOut {
		if err := r.proc.Kill(); err != nil {
			r.logger.Error("kill simulator", ports.Err(err))
		}
		return fmt.Errorf("%w after %s", domain.ErrProcessTimedOut, o.opts.ExitTimeout)
	}
	if ex.Code != 0 {
		r.logger.Warn("simulator exited with non-zero code", ports.Int("code", ex.Code))
	}
	return nil
}

func (o *Orchestrator) compare(r *caseRun) domain.Outcome {
	if err := o.enter(r, domain.StageComparing, "compare traces"); err != nil {
		return o.errored(r, err)
	}
	if r.tc.Reference == nil {
		return o.errored(r, errors.New("case has no reference trace"))
	}
	act, err := o.actual(r)
	if err != nil {
		return o.errored(r, err)
	}
	strategy := r.tc.Strategy
	if strategy == nil {
		strategy = compare.Numeric{}
	}

	res, err := strategy.Compare(r.tc.Reference, act)
	if err != nil {
		return o.errored(r, err)
	}
	if res.Match {
		if err := o.enter(r, domain.StagePassed, "traces match"); err != nil {
			r.logger.Warn("passed transition", ports.Err(err))
		}
		return domain.Outcome{Status: domain.StatusPassed, Stage: domain.StageComparing}
	}
	if err := o.enter(r, domain.StageFailed, res.Divergence.String()); err != nil {
		r.logger.Warn("failed transition", ports.Err(err))
	}
	return domain.Outcome{
		Status:     domain.StatusFailed,
		Stage:      domain.StageComparing,
		Err:        res.Err(),
		Divergence: res.Divergence,
	}
}

// actual picks the trace the run produced: the simulator's file if one is
// configured, else the rows returned in the reply.
func (o *Orchestrator) actual(r *caseRun) (ports.TraceSource, error) {
	if o.opts.TraceCSV != "" {
		return fs.File(o.opts.TraceCSV), nil
	}
	if len(r.reply.Trace) > 0 {
		return fs.FromTrace("reply", []string{"tick"}, r.reply.Trace), nil
	}
	return nil, errors.New("no trace: no trace file configured and the reply carried no rows")
}

func (o *Orchestrator) errored(r *caseRun, err error) domain.Outcome {
	stage := r.stage
	if err := r.lc.TransitionTo(domain.StageErrored, err.Error()); err != nil {
		r.logger.Debug("errored transition", ports.Err(err))
	}
	r.logger.Error("case errored", ports.Stringer("stage", stage), ports.Err(err))
	return domain.Outcome{
		Status: domain.StatusErrored,
		Stage:  stage,
		Err:    &domain.StageError{Stage: stage, Err: err},
	}
}

// teardown releases the connection and the simulator. On early exits it
// makes a best-effort shutdown first so the simulator can exit cleanly.
func (o *Orchestrator) teardown(r *caseRun) {
	if r.client != nil {
		if o.opts.managed() && !r.shutdownSent {
			ctx, cancel := context.WithTimeout(context.Background(), o.opts.ExitTimeout)
			if err := r.client.Shutdown(ctx); err == nil {
				r.shutdownSent = true
			}
			cancel()
		}
		_ = r.client.Close()
	}
	if r.proc != nil {
		if r.shutdownSent {
			r.proc.AwaitExit(o.opts.ExitTimeout)
		}
		if err := r.proc.Kill(); err != nil {
			r.logger.Warn("kill simulator", ports.Err(err))
		}
	}
}
