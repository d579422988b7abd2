package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunSequence_ValidatesPayload(t *testing.T) {
	_, err := RunSequence(nil)
	require.ErrorIs(t, err, ErrEmptySequence)

	_, err = RunSequence([]byte{1, 2, 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not word aligned")

	src := []byte{1, 0, 0, 0}
	cmd, err := RunSequence(src)
	require.NoError(t, err)
	assert.Equal(t, CommandRunSequence, cmd.Kind())
	assert.Equal(t, "run_seq", cmd.Name())
	assert.True(t, cmd.Valid())

	src[0] = 9
	assert.Equal(t, byte(1), cmd.Payload()[0], "payload must be copied")
}

func TestShutdown_HasNoPayload(t *testing.T) {
	cmd := Shutdown()
	assert.Equal(t, CommandShutdown, cmd.Kind())
	assert.Empty(t, cmd.Payload())
	assert.False(t, Command{}.Valid())
}

func TestBufferIndex(t *testing.T) {
	id, err := BufferIndex("tx0_i")
	require.NoError(t, err)
	assert.Equal(t, 5, id)

	id, err = BufferIndex("42")
	require.NoError(t, err)
	assert.Equal(t, 42, id)

	_, err = BufferIndex("nope")
	assert.Error(t, err)

	assert.Equal(t, "gpio", BufferName(15))
	assert.Equal(t, "99", BufferName(99))
	assert.Len(t, BufferNames(), BufferCount)
}

func TestErrorHelpers_SeeThroughWrapping(t *testing.T) {
	compileErr := fmt.Errorf("case x: %w", &StageError{
		Stage: StageCompiling,
		Err:   &CompileError{Kind: CompileUnknownBuffer, Buffer: 20, Index: 0, Msg: "buffer 20"},
	})
	assert.True(t, IsCompileError(compileErr))
	assert.False(t, IsProtocolError(compileErr))

	protoErr := &ProtocolError{Op: "read", Timeout: true, Err: errors.New("i/o timeout")}
	assert.True(t, IsProtocolError(fmt.Errorf("wrap: %w", protoErr)))
	assert.Contains(t, protoErr.Error(), "timeout")

	assert.True(t, IsLaunchError(&LaunchError{Path: "/x", Err: errors.New("missing")}))
	assert.True(t, IsMismatch(&ComparisonMismatch{Strategy: "numeric"}))
}

func TestStage_Terminal(t *testing.T) {
	assert.True(t, StagePassed.Terminal())
	assert.True(t, StageErrored.Terminal())
	assert.False(t, StageComparing.Terminal())
	assert.Equal(t, "AwaitingExit", StageAwaitingExit.String())
	assert.Equal(t, "Unknown", Stage(99).String())
}

func TestTrace_CloneIsDeep(t *testing.T) {
	tr := Trace{{Timestamp: 1, Values: []int64{2, 3}}}
	c := tr.Clone()
	c[0].Values[0] = 99
	assert.Equal(t, int64(2), tr[0].Values[0])
	assert.Equal(t, "1,2,3", tr[0].String())
}
