package compiler

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/bft-labs/seqharness/internal/domain"
)

// Compile validates p and encodes it as an instruction stream.
func Compile(p domain.Program) ([]uint32, error) {
	type emitted struct {
		tick  uint32
		order int
		w     domain.BufferWrite
	}

	last := make(map[int]uint32, domain.BufferCount)
	writes := make([]emitted, 0, len(p.Writes))
	for i, w := range p.Writes {
		if w.Buffer < 0 || w.Buffer >= domain.BufferCount {
			return nil, &domain.CompileError{
				Kind:   domain.CompileUnknownBuffer,
				Buffer: w.Buffer,
				Index:  i,
				Msg:    fmt.Sprintf("buffer %d outside [0, %d)", w.Buffer, domain.BufferCount),
			}
		}
		if w.Value > domain.MaxBufferValue {
			return nil, &domain.CompileError{
				Kind:   domain.CompileValueOverflow,
				Buffer: w.Buffer,
				Index:  i,
				Msg:    fmt.Sprintf("value %#x exceeds %#x", w.Value, domain.MaxBufferValue),
			}
		}
		if prev, seen := last[w.Buffer]; seen && w.Timestamp <= prev {
			return nil, &domain.CompileError{
				Kind:   domain.CompileNonMonotonic,
				Buffer: w.Buffer,
				Index:  i,
				Msg: fmt.Sprintf("%s at tick %d does not follow tick %d",
					domain.BufferName(w.Buffer), w.Timestamp, prev),
			}
		}
		last[w.Buffer] = w.Timestamp

		lat := p.Latencies[w.Buffer]
		if w.Timestamp < lat {
			return nil, &domain.CompileError{
				Kind:   domain.CompileLatencyUnderflow,
				Buffer: w.Buffer,
				Index:  i,
				Msg: fmt.Sprintf("%s at tick %d is earlier than its latency %d",
					domain.BufferName(w.Buffer), w.Timestamp, lat),
			}
		}
		writes = append(writes, emitted{tick: w.Timestamp - lat, order: i, w: w})
	}

	sort.SliceStable(writes, func(a, b int) bool {
		return writes[a].tick < writes[b].tick
	})

	words := make([]uint32, 0, domain.BufferCount+2*len(writes))
	for _, v := range p.InitialBufs {
		words = append(words, uint32(v))
	}
	for _, e := range writes {
		words = append(words, e.tick, uint32(e.w.Buffer)<<16|e.w.Value)
	}
	return words, nil
}

// Decode reverses Compile. Latencies must be the ones the stream was
// compiled with; writes come back in issue order.
func Decode(words []uint32, latencies [domain.BufferCount]uint32) (domain.Program, error) {
	var p domain.Program
	if len(words) < domain.BufferCount || (len(words)-domain.BufferCount)%2 != 0 {
		return p, &domain.CompileError{
			Kind:   domain.CompileBufferCount,
			Buffer: -1,
			Index:  -1,
			Msg:    fmt.Sprintf("stream of %d words does not hold %d initial buffers plus write pairs", len(words), domain.BufferCount),
		}
	}

	p.Latencies = latencies
	for i := 0; i < domain.BufferCount; i++ {
		if words[i] > domain.MaxBufferValue {
			return p, &domain.CompileError{
				Kind:   domain.CompileValueOverflow,
				Buffer: i,
				Index:  -1,
				Msg:    fmt.Sprintf("initial value %#x exceeds %#x", words[i], domain.MaxBufferValue),
			}
		}
		p.InitialBufs[i] = uint16(words[i])
	}

	body := words[domain.BufferCount:]
	p.Writes = make([]domain.BufferWrite, 0, len(body)/2)
	for k := 0; k < len(body); k += 2 {
		buf := int(body[k+1] >> 16)
		if buf >= domain.BufferCount {
			return p, &domain.CompileError{
				Kind:   domain.CompileUnknownBuffer,
				Buffer: buf,
				Index:  k / 2,
				Msg:    fmt.Sprintf("buffer %d outside [0, %d)", buf, domain.BufferCount),
			}
		}
		p.Writes = append(p.Writes, domain.BufferWrite{
			Buffer:    buf,
			Timestamp: body[k] + latencies[buf],
			Value:     body[k+1] & domain.MaxBufferValue,
		})
	}
	return p, nil
}

// Bytes serializes words little-endian, the byte order the sequencer reads.
func Bytes(words []uint32) []byte {
	b := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(b[4*i:], w)
	}
	return b
}

// Words parses a little-endian byte stream back into words.
func Words(b []byte) ([]uint32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("instruction stream of %d bytes is not word aligned", len(b))
	}
	words := make([]uint32, len(b)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(b[4*i:])
	}
	return words, nil
}
