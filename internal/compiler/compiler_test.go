package compiler

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/seqharness/internal/domain"
)

func compileKind(t *testing.T, err error) domain.CompileErrorKind {
	t.Helper()
	var ce *domain.CompileError
	require.True(t, errors.As(err, &ce), "want CompileError, got %v", err)
	return ce.Kind
}

func TestCompile_StreamLength(t *testing.T) {
	p := domain.Program{Writes: []domain.BufferWrite{
		{Buffer: 5, Timestamp: 10, Value: 1},
		{Buffer: 6, Timestamp: 10, Value: 2},
		{Buffer: 5, Timestamp: 20, Value: 3},
	}}
	words, err := Compile(p)
	require.NoError(t, err)
	assert.Len(t, words, domain.BufferCount+2*len(p.Writes))

	empty, err := Compile(domain.Program{})
	require.NoError(t, err)
	assert.Len(t, empty, domain.BufferCount)
}

func TestCompile_SubtractsLatencyAndSorts(t *testing.T) {
	p := domain.Program{
		Writes: []domain.BufferWrite{
			{Buffer: 5, Timestamp: 100, Value: 7},
			{Buffer: 1, Timestamp: 300, Value: 9},
		},
	}
	p.Latencies[1] = 268
	p.InitialBufs[15] = 4

	words, err := Compile(p)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), words[15])

	body := words[domain.BufferCount:]
	// grad write issues at tick 32, before the tx write at 100
	assert.Equal(t, []uint32{32, 1<<16 | 9, 100, 5<<16 | 7}, body)
}

func TestCompile_RoundTrip(t *testing.T) {
	p := domain.Program{Writes: []domain.BufferWrite{
		{Buffer: 0, Timestamp: 5, Value: 0x328},
		{Buffer: 2, Timestamp: 400, Value: 0x1234},
		{Buffer: 16, Timestamp: 500, Value: 0xFFFF},
	}}
	p.Latencies[2] = 276
	p.InitialBufs[3] = 12

	words, err := Compile(p)
	require.NoError(t, err)

	decoded, err := Words(Bytes(words))
	require.NoError(t, err)
	require.Equal(t, words, decoded)

	back, err := Decode(decoded, p.Latencies)
	require.NoError(t, err)
	assert.Equal(t, p.InitialBufs, back.InitialBufs)
	assert.ElementsMatch(t, p.Writes, back.Writes)
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name string
		prog domain.Program
		want domain.CompileErrorKind
	}{
		{
			name: "buffer out of range",
			prog: domain.Program{Writes: []domain.BufferWrite{{Buffer: 17, Timestamp: 1, Value: 1}}},
			want: domain.CompileUnknownBuffer,
		},
		{
			name: "negative buffer",
			prog: domain.Program{Writes: []domain.BufferWrite{{Buffer: -1, Timestamp: 1, Value: 1}}},
			want: domain.CompileUnknownBuffer,
		},
		{
			name: "value overflow",
			prog: domain.Program{Writes: []domain.BufferWrite{{Buffer: 3, Timestamp: 1, Value: 0x10000}}},
			want: domain.CompileValueOverflow,
		},
		{
			name: "repeated timestamp",
			prog: domain.Program{Writes: []domain.BufferWrite{
				{Buffer: 3, Timestamp: 10, Value: 1},
				{Buffer: 3, Timestamp: 10, Value: 2},
			}},
			want: domain.CompileNonMonotonic,
		},
		{
			name: "going backwards",
			prog: domain.Program{Writes: []domain.BufferWrite{
				{Buffer: 4, Timestamp: 10, Value: 1},
				{Buffer: 4, Timestamp: 9, Value: 2},
			}},
			want: domain.CompileNonMonotonic,
		},
		{
			name: "earlier than latency",
			prog: func() domain.Program {
				p := domain.Program{Writes: []domain.BufferWrite{{Buffer: 1, Timestamp: 100, Value: 1}}}
				p.Latencies[1] = 268
				return p
			}(),
			want: domain.CompileLatencyUnderflow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.prog)
			require.Error(t, err)
			assert.True(t, domain.IsCompileError(err))
			assert.Equal(t, tt.want, compileKind(t, err))
		})
	}
}

func TestDecode_RejectsShortStream(t *testing.T) {
	_, err := Decode(make([]uint32, domain.BufferCount-1), [domain.BufferCount]uint32{})
	assert.Equal(t, domain.CompileBufferCount, compileKind(t, err))

	_, err = Decode(make([]uint32, domain.BufferCount+1), [domain.BufferCount]uint32{})
	assert.Equal(t, domain.CompileBufferCount, compileKind(t, err))
}

func TestWords_Unaligned(t *testing.T) {
	_, err := Words([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestBoards(t *testing.T) {
	assert.Equal(t, []string{"gpa-fhdo", "ocra1"}, BoardNames())

	b, err := LookupBoard("")
	require.NoError(t, err)
	assert.Equal(t, NoBoard, b)

	_, err = LookupBoard("gradientron")
	require.Error(t, err)

	ocra, err := LookupBoard("ocra1")
	require.NoError(t, err)
	assert.Equal(t, uint16(0x329), ocra.InitialBufs[0])
	assert.Equal(t, uint32(268), ocra.Latencies[1])
	assert.Equal(t, uint32(268), ocra.Latencies[2])
	assert.Zero(t, ocra.Latencies[5])

	fhdo, err := LookupBoard("gpa-fhdo")
	require.NoError(t, err)
	assert.Equal(t, uint16(0x32A), fhdo.InitialBufs[0])
	assert.Equal(t, uint32(276), fhdo.Latencies[2])
}

func TestBoard_ApplyKeepsCallerState(t *testing.T) {
	p := domain.Program{Writes: []domain.BufferWrite{{Buffer: 1, Timestamp: 300, Value: 1}}}
	p.InitialBufs[15] = 3

	ocra, err := LookupBoard("ocra1")
	require.NoError(t, err)
	out := ocra.Apply(p)

	assert.Equal(t, uint16(3), out.InitialBufs[15])
	assert.Equal(t, uint16(0x329), out.InitialBufs[0])
	assert.Zero(t, p.Latencies[1], "input program must not change")

	out.Writes[0].Value = 2
	assert.Equal(t, uint32(1), p.Writes[0].Value)
}

const csvProgram = `tick,b0,b1,b2,b3,b4,b5,b6,b7,b8,b9,b10,b11,b12,b13,b14,b15,b16
# initial state
0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0
100,0,0,0,0,0,10,20,0,0,0,0,0,0,0,0,0,0
200,0,0,0,0,0,10,0,0,0,0,0,0,0,0,0,1.0,0
`

func TestFromCSV(t *testing.T) {
	p, err := FromCSV(strings.NewReader(csvProgram))
	require.NoError(t, err)
	assert.Equal(t, []domain.BufferWrite{
		{Buffer: 5, Timestamp: 100, Value: 10},
		{Buffer: 6, Timestamp: 100, Value: 20},
		{Buffer: 6, Timestamp: 200, Value: 0},
		{Buffer: 15, Timestamp: 200, Value: 1},
	}, p.Writes)
}

func TestFromCSV_Errors(t *testing.T) {
	_, err := FromCSV(strings.NewReader("h\n0,1,2\n"))
	assert.Equal(t, domain.CompileBufferCount, compileKind(t, err))

	row := "0" + strings.Repeat(",x", domain.BufferCount)
	_, err = FromCSV(strings.NewReader("h\n" + row + "\n"))
	assert.Equal(t, domain.CompileMalformed, compileKind(t, err))

	row = "0,70000" + strings.Repeat(",0", domain.BufferCount-1)
	_, err = FromCSV(strings.NewReader("h\n" + row + "\n"))
	assert.Equal(t, domain.CompileValueOverflow, compileKind(t, err))
}

func TestFromDict(t *testing.T) {
	p, err := FromDict(Dict{
		"tx0_i": {Times: []uint32{100, 200}, Values: []uint32{1, 0}},
		"3":     {Times: []uint32{100}, Values: []uint32{5}},
	})
	require.NoError(t, err)
	assert.Equal(t, []domain.BufferWrite{
		{Buffer: 3, Timestamp: 100, Value: 5},
		{Buffer: 5, Timestamp: 100, Value: 1},
		{Buffer: 5, Timestamp: 200, Value: 0},
	}, p.Writes)

	_, err = FromDict(Dict{"flux": {Times: []uint32{1}, Values: []uint32{1}}})
	assert.Equal(t, domain.CompileUnknownBuffer, compileKind(t, err))

	_, err = FromDict(Dict{"gpio": {Times: []uint32{1, 2}, Values: []uint32{1}}})
	assert.Equal(t, domain.CompileMalformed, compileKind(t, err))

	_, err = FromDict(Dict{"tx0_i": {Times: []uint32{100, 50}, Values: []uint32{1, 2}}})
	assert.Equal(t, domain.CompileNonMonotonic, compileKind(t, err))

	_, err = FromDict(Dict{"gpio": {Times: []uint32{10, 20, 20}, Values: []uint32{1, 0, 1}}})
	assert.Equal(t, domain.CompileNonMonotonic, compileKind(t, err))

	// an out-of-range id parses but is rejected by Compile
	p, err = FromDict(Dict{"40": {Times: []uint32{1}, Values: []uint32{1}}})
	require.NoError(t, err)
	_, err = Compile(p)
	assert.Equal(t, domain.CompileUnknownBuffer, compileKind(t, err))
}

func TestLoadProgramFile(t *testing.T) {
	dir := t.TempDir()

	yml := filepath.Join(dir, "prog.yaml")
	require.NoError(t, os.WriteFile(yml, []byte("buffers:\n  gpio:\n    times: [10, 20]\n    values: [1, 0]\n"), 0o644))
	p, err := LoadProgramFile(yml)
	require.NoError(t, err)
	assert.Len(t, p.Writes, 2)

	bad := filepath.Join(dir, "bad.yml")
	require.NoError(t, os.WriteFile(bad, []byte("buffer:\n  gpio: {}\n"), 0o644))
	_, err = LoadProgramFile(bad)
	require.Error(t, err, "unknown top-level keys are rejected")

	csvPath := filepath.Join(dir, "prog.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(csvProgram), 0o644))
	p, err = LoadProgramFile(csvPath)
	require.NoError(t, err)
	assert.Len(t, p.Writes, 4)

	_, err = LoadProgramFile(filepath.Join(dir, "prog.txt"))
	require.Error(t, err)
}
