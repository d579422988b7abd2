// Package compiler turns a sequence program into the binary instruction
// stream executed by the sequencer.
//
// # Instruction stream
//
// The stream is a flat slice of 32-bit words:
//
//	[0, BufferCount)          initial value of every buffer
//	BufferCount + 2k          tick at which write k is issued
//	BufferCount + 2k + 1      buffer<<16 | value
//
// Writes are issued Latencies[buffer] ticks before their nominal timestamp so
// that buffers with a slow output path (the gradient SPI links) change at
// the requested tick. The stream therefore always holds
// BufferCount + 2*len(writes) words.
//
// Programs come from a CSV table (the same layout the simulator writes) or
// from a per-buffer dictionary of times and values.
package compiler
