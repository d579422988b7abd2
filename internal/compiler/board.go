package compiler

import (
	"fmt"
	"sort"

	"github.com/bft-labs/seqharness/internal/domain"
)

// Gradient control word in buffer 0: strobe for both LSB and MSB with
// reset_n high, SPI clock divider 10, board select in the low two bits.
const (
	gradStrobeReset = 1<<9 | 1<<8
	gradSPIDiv      = 10 << 2
)

// Grad board select values in the gradient control word.
const (
	selectOcra1   = 1
	selectGPAFHDO = 2
)

// Board is a gradient board preset: the initial buffers and output
// latencies a program needs to drive that board.
type Board struct {
	Name        string
	InitialBufs [domain.BufferCount]uint16
	Latencies   [domain.BufferCount]uint32
}

func gradBoard(name string, sel uint16, latency uint32) Board {
	b := Board{Name: name}
	b.InitialBufs[0] = gradStrobeReset | gradSPIDiv | sel
	// grad latencies match the SPI divider
	b.Latencies[1] = latency
	b.Latencies[2] = latency
	return b
}

var boards = map[string]Board{
	"ocra1":    gradBoard("ocra1", selectOcra1, 268),
	"gpa-fhdo": gradBoard("gpa-fhdo", selectGPAFHDO, 276),
}

// NoBoard leaves programs untouched.
var NoBoard = Board{Name: "none"}

// LookupBoard returns the preset for name. An empty name or "none" yields NoBoard.
func LookupBoard(name string) (Board, error) {
	if name == "" || name == NoBoard.Name {
		return NoBoard, nil
	}
	b, ok := boards[name]
	if !ok {
		return Board{}, fmt.Errorf("unknown grad board %q (known: %v)", name, BoardNames())
	}
	return b, nil
}

// BoardNames lists the known presets.
func BoardNames() []string {
	names := make([]string, 0, len(boards))
	for n := range boards {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Apply returns p with the board's latencies and any non-zero board initial
// buffers. Initial values of buffers the board does not drive are kept.
func (b Board) Apply(p domain.Program) domain.Program {
	out := p
	out.Writes = append([]domain.BufferWrite(nil), p.Writes...)
	for i := 0; i < domain.BufferCount; i++ {
		if b.InitialBufs[i] != 0 {
			out.InitialBufs[i] = b.InitialBufs[i]
		}
		out.Latencies[i] = b.Latencies[i]
	}
	return out
}
