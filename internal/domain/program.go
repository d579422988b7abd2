package domain

import (
	"fmt"
	"strconv"
)

// BufferCount is the number of controllable buffers on the sequencer.
const BufferCount = 17

// MaxBufferValue is the largest value a buffer write may carry.
const MaxBufferValue = 0xFFFF

var bufferNames = [BufferCount]string{
	"gradb",
	"grad_lsb",
	"grad_msb",
	"rx0_rate",
	"rx1_rate",
	"tx0_i",
	"tx0_q",
	"tx1_i",
	"tx1_q",
	"lo0_phase_lsb",
	"lo0_phase_msb",
	"lo1_phase_lsb",
	"lo1_phase_msb",
	"lo2_phase_lsb",
	"lo2_phase_msb",
	"gpio",
	"rx_ctrl",
}

// BufferName returns the symbolic name of buffer id, or its number when out of range.
func BufferName(id int) string {
	if id < 0 || id >= BufferCount {
		return strconv.Itoa(id)
	}
	return bufferNames[id]
}

// BufferNames returns the symbolic names of all buffers in id order.
func BufferNames() []string {
	out := make([]string, BufferCount)
	copy(out, bufferNames[:])
	return out
}

// BufferIndex resolves a buffer name or decimal id.
// The id is not range checked so that the compiler can report it.
func BufferIndex(name string) (int, error) {
	for i, n := range bufferNames {
		if n == name {
			return i, nil
		}
	}
	id, err := strconv.Atoi(name)
	if err != nil {
		return 0, fmt.Errorf("unknown buffer %q", name)
	}
	return id, nil
}

// BufferWrite sets Buffer to Value at tick Timestamp.
type BufferWrite struct {
	Buffer    int
	Timestamp uint32
	Value     uint32
}

// Program is an ordered set of buffer writes plus the per-buffer state the
// compiler needs to build the instruction stream.
//
// Programs are built by the caller, read by the compiler and then discarded.
type Program struct {
	Writes      []BufferWrite
	InitialBufs [BufferCount]uint16
	Latencies   [BufferCount]uint32
}

// WritesFor returns the writes to one buffer in program order.
func (p *Program) WritesFor(buffer int) []BufferWrite {
	var out []BufferWrite
	for _, w := range p.Writes {
		if w.Buffer == buffer {
			out = append(out, w)
		}
	}
	return out
}
