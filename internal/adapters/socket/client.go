package socket

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/bft-labs/seqharness/internal/domain"
	"github.com/bft-labs/seqharness/internal/ports"
	"github.com/bft-labs/seqharness/pkg/log"
)

// DefaultIOTimeout bounds a single command round trip.
const DefaultIOTimeout = 10 * time.Second

// Options configures a Client.
type Options struct {
	// IOTimeout bounds each write and reply read. Zero means DefaultIOTimeout.
	IOTimeout time.Duration

	Logger ports.Logger
}

// Client speaks the sequencer protocol over one TCP connection.
// It has a single owner and does no locking of its own.
type Client struct {
	conn      net.Conn
	enc       *msgpack.Encoder
	dec       *msgpack.Decoder
	ioTimeout time.Duration
	logger    ports.Logger
	index     uint32
	closeOnce sync.Once
	closeErr  error
}

// Dial connects to the server at addr.
func Dial(ctx context.Context, addr string, opts Options) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &domain.ProtocolError{Op: "dial", Timeout: isTimeout(err), Err: err}
	}
	return NewClient(conn, opts), nil
}

// NewClient wraps an established connection.
func NewClient(conn net.Conn, opts Options) *Client {
	if opts.IOTimeout <= 0 {
		opts.IOTimeout = DefaultIOTimeout
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	return &Client{
		conn:      conn,
		enc:       msgpack.NewEncoder(conn),
		dec:       newDecoder(conn),
		ioTimeout: opts.IOTimeout,
		logger:    opts.Logger.With(log.String("remote", conn.RemoteAddr().String())),
	}
}

// Command sends cmd and waits for the matching reply.
func (c *Client) Command(ctx context.Context, cmd domain.Command) (domain.Reply, error) {
	if cmd.Kind() == domain.CommandShutdown {
		return domain.Reply{}, c.Shutdown(ctx)
	}
	pkt, err := newRequest(c.index, cmd)
	if err != nil {
		return domain.Reply{}, err
	}

	stop := c.arm(ctx)
	defer stop()

	if err := c.enc.Encode(&pkt); err != nil {
		return domain.Reply{}, c.protocolErr(ctx, "write", err)
	}
	c.logger.Debug("command sent",
		log.String("command", cmd.Name()),
		log.Uint32("index", pkt.Index),
		log.Int("bytes", len(cmd.Payload())),
	)

	var rep replyPacket
	if err := c.dec.Decode(&rep); err != nil {
		return domain.Reply{}, c.protocolErr(ctx, "read", err)
	}
	c.index++

	if rep.Type != packetReply {
		return domain.Reply{}, &domain.ProtocolError{Op: "decode", Err: fmt.Errorf("packet type %#x, want reply", rep.Type)}
	}
	if rep.Index != pkt.Index {
		return domain.Reply{}, &domain.ProtocolError{Op: "decode", Err: fmt.Errorf("reply index %d, want %d", rep.Index, pkt.Index)}
	}
	if rep.Version>>16 != VersionMajor {
		c.logger.Warn("server protocol version differs",
			log.Uint32("server", rep.Version),
			log.Uint32("client", wireVersion),
		)
	}

	reply := domain.Reply{Return: rep.Return, Messages: rep.Messages.domain()}
	if raw, ok := rep.Return[traceKey]; ok {
		tr, err := decodeTrace(raw)
		if err != nil {
			return domain.Reply{}, &domain.ProtocolError{Op: "decode", Err: err}
		}
		reply.Trace = tr
	}
	return reply, nil
}

// Shutdown writes a close-server packet and returns without reading.
func (c *Client) Shutdown(ctx context.Context) error {
	pkt, err := newRequest(c.index, domain.Shutdown())
	if err != nil {
		return err
	}
	stop := c.arm(ctx)
	defer stop()
	if err := c.enc.Encode(&pkt); err != nil {
		return c.protocolErr(ctx, "write", err)
	}
	c.index++
	c.logger.Debug("shutdown sent")
	return nil
}

// Close closes the connection once; later calls return the first result.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// arm sets the connection deadline to the earlier of the context deadline and
// the IO timeout, and cuts blocked IO short if ctx is cancelled.
func (c *Client) arm(ctx context.Context) func() {
	deadline := time.Now().Add(c.ioTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.conn.SetDeadline(deadline)
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetDeadline(time.Now())
	})
	return func() { stop() }
}

func (c *Client) protocolErr(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(ctxErr, context.DeadlineExceeded) {
		return &domain.ProtocolError{Op: op, Err: ctxErr}
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &domain.ProtocolError{Op: op, Err: fmt.Errorf("connection closed: %w", err)}
	}
	return &domain.ProtocolError{Op: op, Timeout: isTimeout(err), Err: err}
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// Dialer opens Clients with fixed options.
type Dialer struct {
	Options Options
}

// Dial implements ports.Dialer.
func (d Dialer) Dial(ctx context.Context, addr string) (ports.SequencerClient, error) {
	c, err := Dial(ctx, addr, d.Options)
	if err != nil {
		return nil, err
	}
	return c, nil
}

var (
	_ ports.SequencerClient = (*Client)(nil)
	_ ports.Dialer          = Dialer{}
)
