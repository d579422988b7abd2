package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/seqharness/internal/adapters/fs"
	"github.com/bft-labs/seqharness/internal/compare"
	"github.com/bft-labs/seqharness/internal/compiler"
	"github.com/bft-labs/seqharness/internal/domain"
	"github.com/bft-labs/seqharness/internal/ports"
)

type fakeClient struct {
	mu        sync.Mutex
	reply     domain.Reply
	cmdErr    error
	cmdPanic  string
	commands  []domain.Command
	shutdowns int
	closes    int
}

func (c *fakeClient) Command(ctx context.Context, cmd domain.Command) (domain.Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commands = append(c.commands, cmd)
	if c.cmdPanic != "" {
		panic(c.cmdPanic)
	}
	return c.reply, c.cmdErr
}

func (c *fakeClient) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shutdowns++
	return nil
}

func (c *fakeClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	return nil
}

type fakeDialer struct {
	client *fakeClient
	err    error
	calls  int
}

func (d *fakeDialer) Dial(ctx context.Context, addr string) (ports.SequencerClient, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	return d.client, nil
}

type fakeProcess struct {
	outcome domain.ExitOutcome
	awaits  int
	kills   int
}

func (p *fakeProcess) Pid() int { return 42 }

func (p *fakeProcess) AwaitExit(timeout time.Duration) domain.ExitOutcome {
	p.awaits++
	if p.kills > 0 {
		return domain.ExitOutcome{Code: -1}
	}
	return p.outcome
}

func (p *fakeProcess) Kill() error {
	p.kills++
	return nil
}

type fakeProcs struct {
	proc   *fakeProcess
	err    error
	starts int
	path   string
	args   []string
}

func (m *fakeProcs) Start(ctx context.Context, path string, args []string) (ports.Process, error) {
	m.starts++
	m.path, m.args = path, args
	if m.err != nil {
		return nil, m.err
	}
	return m.proc, nil
}

type fixture struct {
	client  *fakeClient
	dialer  *fakeDialer
	proc    *fakeProcess
	procs   *fakeProcs
	emitter *mockEmitter
	opts    Options
}

func newFixture() *fixture {
	f := &fixture{
		client:  &fakeClient{},
		proc:    &fakeProcess{},
		emitter: &mockEmitter{},
		opts: Options{
			Addr:           "127.0.0.1:11111",
			SimulatorPath:  "/opt/marga/Vmarga",
			ConnectTimeout: time.Second,
			ExitTimeout:    10 * time.Millisecond,
			BackoffInitial: time.Millisecond,
			BackoffMax:     time.Millisecond,
		},
	}
	f.dialer = &fakeDialer{client: f.client}
	f.procs = &fakeProcs{proc: f.proc}
	return f
}

func (f *fixture) orchestrator() *Orchestrator {
	return NewOrchestrator(f.opts, ports.CompilerFunc(compiler.Compile), f.dialer, f.procs, mockLogger{}, f.emitter)
}

const refTrace = "tick,tx0_i\n0,0\n5,1\n9,2\n"

func simpleProgram() (domain.Program, error) {
	return domain.Program{Writes: []domain.BufferWrite{
		{Buffer: 5, Timestamp: 5, Value: 1},
		{Buffer: 5, Timestamp: 9, Value: 2},
	}}, nil
}

func testCase(name string) TestContext {
	return TestContext{
		Case:      name,
		Program:   simpleProgram,
		Board:     compiler.NoBoard,
		Reference: fs.Bytes("ref", []byte(refTrace)),
		Strategy:  compare.Numeric{},
	}
}

func replyTrace(last int64) domain.Trace {
	return domain.Trace{
		{Timestamp: 0, Values: []int64{0}},
		{Timestamp: 12, Values: []int64{1}},
		{Timestamp: 16, Values: []int64{last}},
	}
}

func TestOrchestrator_Passes(t *testing.T) {
	f := newFixture()
	f.client.reply = domain.Reply{Trace: replyTrace(2), Messages: domain.Messages{Infos: []string{"ok"}}}

	out := f.orchestrator().Run(context.Background(), testCase("pass"))

	require.Equal(t, domain.StatusPassed, out.Status, "err: %v", out.Err)
	assert.Equal(t, "pass", out.Case)
	assert.NoError(t, out.Err)
	assert.Equal(t, []string{"ok"}, out.Messages.Infos)
	assert.Equal(t, []domain.Stage{
		domain.StageCompiling,
		domain.StageConnected,
		domain.StageRunning,
		domain.StageShutdownRequested,
		domain.StageAwaitingExit,
		domain.StageComparing,
		domain.StagePassed,
	}, f.emitter.Stages())

	require.Len(t, f.client.commands, 1)
	assert.Equal(t, domain.CommandRunSequence, f.client.commands[0].Kind())
	assert.Len(t, f.client.commands[0].Payload(), 4*(domain.BufferCount+4))
	assert.Equal(t, 1, f.client.shutdowns)
	assert.GreaterOrEqual(t, f.client.closes, 1)
	assert.Equal(t, 1, f.procs.starts)
	assert.Equal(t, []string{"csv", ""}, f.procs.args)
}

func TestOrchestrator_MismatchFails(t *testing.T) {
	f := newFixture()
	f.client.reply = domain.Reply{Trace: replyTrace(3)}

	out := f.orchestrator().Run(context.Background(), testCase("mismatch"))

	require.Equal(t, domain.StatusFailed, out.Status)
	assert.True(t, domain.IsMismatch(out.Err))
	require.NotNil(t, out.Divergence)
	assert.Equal(t, 2, out.Divergence.Index)
	assert.Equal(t, "2", out.Divergence.Reference)
	assert.Equal(t, "3", out.Divergence.Actual)
	events := f.emitter.Events()
	last := events[len(events)-1]
	assert.Equal(t, domain.StageFailed, last.current)
	assert.Equal(t, domain.StageComparing, last.previous)
	assert.Equal(t, out.Divergence.String(), last.reason)
}

func TestOrchestrator_PanicErrorsInItsStage(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(f *fixture, tc *TestContext)
		wantStage domain.Stage
		started   int
	}{
		{
			name: "program source",
			setup: func(f *fixture, tc *TestContext) {
				tc.Program = func() (domain.Program, error) { panic("corrupt program") }
			},
			wantStage: domain.StageCompiling,
		},
		{
			name: "client",
			setup: func(f *fixture, tc *TestContext) {
				f.client.cmdPanic = "decoder bug"
			},
			wantStage: domain.StageRunning,
			started:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			tc := testCase("panics")
			tt.setup(f, &tc)

			out := f.orchestrator().Run(context.Background(), tc)

			require.Equal(t, domain.StatusErrored, out.Status)
			assert.Equal(t, "panics", out.Case)
			assert.Equal(t, tt.wantStage, out.Stage)
			assert.Contains(t, out.Err.Error(), "panic: ")

			var se *domain.StageError
			require.True(t, errors.As(out.Err, &se))
			assert.Equal(t, tt.wantStage, se.Stage)

			stages := f.emitter.Stages()
			assert.Equal(t, domain.StageErrored, stages[len(stages)-1])
			assert.Equal(t, tt.started, f.procs.starts)
			assert.Equal(t, tt.started, f.proc.kills, "a started simulator is torn down")
		})
	}
}

func TestOrchestrator_CompileErrorBeforeAnyConnection(t *testing.T) {
	f := newFixture()
	tc := testCase("bad-buffer")
	tc.Program = func() (domain.Program, error) {
		return domain.Program{Writes: []domain.BufferWrite{{Buffer: domain.BufferCount, Timestamp: 1, Value: 1}}}, nil
	}

	out := f.orchestrator().Run(context.Background(), tc)

	require.Equal(t, domain.StatusErrored, out.Status)
	assert.Equal(t, domain.StageCompiling, out.Stage)
	assert.True(t, domain.IsCompileError(out.Err))
	assert.Zero(t, f.procs.starts, "no simulator may be started")
	assert.Zero(t, f.dialer.calls, "no connection may be opened")
}

func TestOrchestrator_ExitTimeoutKillsSimulator(t *testing.T) {
	f := newFixture()
	f.client.reply = domain.Reply{Trace: replyTrace(2)}
	f.proc.outcome = domain.ExitOutcome{TimedOut: true}

	out := f.orchestrator().Run(context.Background(), testCase("hang"))

	require.Equal(t, domain.StatusErrored, out.Status)
	assert.Equal(t, domain.StageAwaitingExit, out.Stage)
	assert.ErrorIs(t, out.Err, domain.ErrProcessTimedOut)
	assert.False(t, domain.IsMismatch(out.Err))
	assert.GreaterOrEqual(t, f.proc.kills, 1)

	var se *domain.StageError
	require.True(t, errors.As(out.Err, &se))
	assert.Equal(t, domain.StageAwaitingExit, se.Stage)
}

func TestOrchestrator_ProtocolErrorTearsDown(t *testing.T) {
	f := newFixture()
	f.client.cmdErr = &domain.ProtocolError{Op: "read", Timeout: true, Err: errors.New("i/o timeout")}

	out := f.orchestrator().Run(context.Background(), testCase("timeout"))

	require.Equal(t, domain.StatusErrored, out.Status)
	assert.Equal(t, domain.StageRunning, out.Stage)
	assert.True(t, domain.IsProtocolError(out.Err))
	assert.Equal(t, 1, f.client.shutdowns, "best-effort shutdown on teardown")
	assert.GreaterOrEqual(t, f.client.closes, 1)
	assert.Equal(t, 1, f.proc.kills)
}

func TestOrchestrator_LaunchError(t *testing.T) {
	f := newFixture()
	f.procs.err = &domain.LaunchError{Path: f.opts.SimulatorPath, Err: errors.New("no such file")}

	out := f.orchestrator().Run(context.Background(), testCase("missing-sim"))

	require.Equal(t, domain.StatusErrored, out.Status)
	assert.Equal(t, domain.StageConnected, out.Stage)
	assert.True(t, domain.IsLaunchError(out.Err))
	assert.Zero(t, f.dialer.calls)
}

func TestOrchestrator_ManagedDialRetriesUntilTimeout(t *testing.T) {
	f := newFixture()
	f.opts.ConnectTimeout = 30 * time.Millisecond
	f.dialer.err = &domain.ProtocolError{Op: "dial", Err: errors.New("connection refused")}

	out := f.orchestrator().Run(context.Background(), testCase("no-listen"))

	require.Equal(t, domain.StatusErrored, out.Status)
	assert.Equal(t, domain.StageConnected, out.Stage)
	assert.True(t, domain.IsProtocolError(out.Err))
	assert.Greater(t, f.dialer.calls, 1)
	assert.Equal(t, 1, f.proc.kills, "started simulator is killed")
}

func TestOrchestrator_ExternalServer(t *testing.T) {
	f := newFixture()
	f.opts.SimulatorPath = ""
	f.client.reply = domain.Reply{Trace: replyTrace(2)}

	out := f.orchestrator().Run(context.Background(), testCase("external"))

	require.Equal(t, domain.StatusPassed, out.Status, "err: %v", out.Err)
	assert.Zero(t, f.procs.starts)
	assert.Zero(t, f.client.shutdowns, "an external server is not shut down")

	f = newFixture()
	f.opts.SimulatorPath = ""
	f.dialer.err = errors.New("refused")
	out = f.orchestrator().Run(context.Background(), testCase("external-down"))
	assert.Equal(t, domain.StatusErrored, out.Status)
	assert.Equal(t, 1, f.dialer.calls, "external servers are dialled once")
}

func TestOrchestrator_NoActualTrace(t *testing.T) {
	f := newFixture()

	out := f.orchestrator().Run(context.Background(), testCase("empty-reply"))

	require.Equal(t, domain.StatusErrored, out.Status)
	assert.Equal(t, domain.StageComparing, out.Stage)
}

func TestOrchestrator_BoardIsThreadedThroughContext(t *testing.T) {
	f := newFixture()
	f.opts.SimulatorArgs = []string{"--board", "{board}", "--port", "{port}"}
	ocra, err := compiler.LookupBoard("ocra1")
	require.NoError(t, err)

	tc := testCase("grad")
	tc.Board = ocra
	tc.Program = func() (domain.Program, error) {
		// earlier than the ocra1 latency
		return domain.Program{Writes: []domain.BufferWrite{{Buffer: 1, Timestamp: 10, Value: 1}}}, nil
	}
	out := f.orchestrator().Run(context.Background(), tc)
	require.Equal(t, domain.StatusErrored, out.Status)
	assert.True(t, domain.IsCompileError(out.Err))

	// the same program without a board compiles, so nothing leaked
	tc.Board = compiler.NoBoard
	f.client.reply = domain.Reply{Trace: replyTrace(2)}
	out = f.orchestrator().Run(context.Background(), tc)
	assert.NotEqual(t, domain.StageCompiling, out.Stage)
	assert.Equal(t, []string{"--board", "none", "--port", "11111"}, f.procs.args)
}
