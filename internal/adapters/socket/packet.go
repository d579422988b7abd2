package socket

import (
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/bft-labs/seqharness/internal/domain"
)

// Packet types.
const (
	packetRequest     uint32 = 0
	packetReply       uint32 = 1
	packetCloseServer uint32 = 0x80
)

// Protocol version carried in every packet.
const (
	VersionMajor = 1
	VersionMinor = 0
	VersionDebug = 0
)

// Version packs a protocol version into its wire word.
func Version(major, minor, debug uint8) uint32 {
	return uint32(major)<<16 | uint32(minor)<<8 | uint32(debug)
}

var wireVersion = Version(VersionMajor, VersionMinor, VersionDebug)

// requestPacket is [type, index, 0, version, {name: payload}].
type requestPacket struct {
	_msgpack struct{} `msgpack:",as_array"`

	Type     uint32
	Index    uint32
	Reserved uint32
	Version  uint32
	Payload  map[string]interface{}
}

// replyPacket is [type, index, 0, version, return, messages].
type replyPacket struct {
	_msgpack struct{} `msgpack:",as_array"`

	Type     uint32
	Index    uint32
	Reserved uint32
	Version  uint32
	Return   map[string]interface{}
	Messages wireMessages
}

type wireMessages struct {
	Infos    []string `msgpack:"infos"`
	Warnings []string `msgpack:"warnings"`
	Errors   []string `msgpack:"errors"`
}

func (m wireMessages) domain() domain.Messages {
	return domain.Messages{Infos: m.Infos, Warnings: m.Warnings, Errors: m.Errors}
}

func fromDomainMessages(m domain.Messages) wireMessages {
	return wireMessages{Infos: m.Infos, Warnings: m.Warnings, Errors: m.Errors}
}

// traceKey is the optional return-map entry holding trace rows.
const traceKey = "trace"

func newRequest(index uint32, cmd domain.Command) (requestPacket, error) {
	if !cmd.Valid() {
		return requestPacket{}, fmt.Errorf("invalid command")
	}
	p := requestPacket{Index: index, Version: wireVersion, Payload: map[string]interface{}{}}
	switch cmd.Kind() {
	case domain.CommandRunSequence:
		p.Type = packetRequest
		p.Payload[domain.RunSequenceName] = cmd.Payload()
	case domain.CommandShutdown:
		p.Type = packetCloseServer
	}
	return p, nil
}

// decodeTrace converts the loosely typed trace entry of a return map.
func decodeTrace(v interface{}) (domain.Trace, error) {
	rows, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("trace is %T, want list", v)
	}
	out := make(domain.Trace, 0, len(rows))
	for i, r := range rows {
		fields, ok := r.([]interface{})
		if !ok || len(fields) == 0 {
			return nil, fmt.Errorf("trace row %d is not a non-empty list", i)
		}
		vals := make([]int64, len(fields))
		for j, f := range fields {
			n, ok := toInt64(f)
			if !ok {
				return nil, fmt.Errorf("trace row %d field %d is %T, want integer", i, j, f)
			}
			vals[j] = n
		}
		out = append(out, domain.Row{Timestamp: vals[0], Values: vals[1:]})
	}
	return out, nil
}

func encodeTrace(t domain.Trace) [][]int64 {
	out := make([][]int64, len(t))
	for i, r := range t {
		out[i] = r.Fields()
	}
	return out
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	default:
		return 0, false
	}
}

func newDecoder(r io.Reader) *msgpack.Decoder {
	dec := msgpack.NewDecoder(r)
	dec.UseLooseInterfaceDecoding(true)
	return dec
}
