package socket

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sort"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/bft-labs/seqharness/internal/domain"
)

// ErrUnknownCommand is returned by ReadRequest for a request naming no
// supported command. The connection stays usable.
var ErrUnknownCommand = errors.New("unknown command")

// Request is a decoded client request.
type Request struct {
	Index   uint32
	Command domain.Command
	// Names lists the payload keys, for diagnostics.
	Names []string
}

// ServerConn is the server end of a protocol connection.
type ServerConn struct {
	conn net.Conn
	enc  *msgpack.Encoder
	dec  *msgpack.Decoder
}

// NewServerConn wraps an accepted connection.
func NewServerConn(conn net.Conn) *ServerConn {
	return &ServerConn{
		conn: conn,
		enc:  msgpack.NewEncoder(conn),
		dec:  newDecoder(conn),
	}
}

// ReadRequest blocks for the next request. io.EOF means the client hung up.
func (s *ServerConn) ReadRequest() (Request, error) {
	var pkt requestPacket
	if err := s.dec.Decode(&pkt); err != nil {
		if errors.Is(err, io.EOF) {
			return Request{}, io.EOF
		}
		return Request{}, &domain.ProtocolError{Op: "read", Err: err}
	}

	req := Request{Index: pkt.Index}
	for name := range pkt.Payload {
		req.Names = append(req.Names, name)
	}
	sort.Strings(req.Names)

	switch pkt.Type {
	case packetCloseServer:
		req.Command = domain.Shutdown()
		return req, nil
	case packetRequest:
	default:
		return req, &domain.ProtocolError{Op: "decode", Err: fmt.Errorf("packet type %#x", pkt.Type)}
	}

	raw, ok := pkt.Payload[domain.RunSequenceName]
	if !ok {
		return req, fmt.Errorf("%w: %v", ErrUnknownCommand, req.Names)
	}
	// loose decoding yields bin payloads as strings
	var b []byte
	switch v := raw.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return req, &domain.ProtocolError{Op: "decode", Err: fmt.Errorf("%s payload is %T, want bytes", domain.RunSequenceName, raw)}
	}
	cmd, err := domain.RunSequence(b)
	if err != nil {
		return req, err
	}
	req.Command = cmd
	return req, nil
}

// WriteReply answers the request with the given index. A non-nil trace is
// sent under the "trace" key of the return map.
func (s *ServerConn) WriteReply(index uint32, reply domain.Reply) error {
	ret := make(map[string]interface{}, len(reply.Return)+1)
	for k, v := range reply.Return {
		ret[k] = v
	}
	if reply.Trace != nil {
		ret[traceKey] = encodeTrace(reply.Trace)
	}
	pkt := replyPacket{
		Type:     packetReply,
		Index:    index,
		Version:  wireVersion,
		Return:   ret,
		Messages: fromDomainMessages(reply.Messages),
	}
	if err := s.enc.Encode(&pkt); err != nil {
		return &domain.ProtocolError{Op: "write", Err: err}
	}
	return nil
}

// Close closes the underlying connection.
func (s *ServerConn) Close() error {
	return s.conn.Close()
}
