package loopback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/bft-labs/seqharness/internal/adapters/socket"
	"github.com/bft-labs/seqharness/internal/compiler"
	"github.com/bft-labs/seqharness/internal/domain"
	"github.com/bft-labs/seqharness/internal/ports"
	"github.com/bft-labs/seqharness/pkg/log"
)

// Behavior selects how the server reacts to commands.
type Behavior string

const (
	// BehaviorNormal runs sequences and exits on shutdown.
	BehaviorNormal Behavior = "normal"
	// BehaviorHang ignores shutdown and keeps running until cancelled.
	BehaviorHang Behavior = "hang"
	// BehaviorDrop hangs up on run requests without replying.
	BehaviorDrop Behavior = "drop"
)

// ParseBehavior validates a behavior name. Empty means normal.
func ParseBehavior(s string) (Behavior, error) {
	switch b := Behavior(s); b {
	case "":
		return BehaviorNormal, nil
	case BehaviorNormal, BehaviorHang, BehaviorDrop:
		return b, nil
	default:
		return "", fmt.Errorf("unknown loopback behavior %q", s)
	}
}

// DefaultStartupOffset is the tick the first output row lands on, standing in
// for the hardware's startup latency.
const DefaultStartupOffset = 5

// Config configures a Server.
type Config struct {
	Addr          string
	CSVPath       string
	FSTPath       string
	Board         string
	StartupOffset uint32
	// ReplyTrace also returns the rendered trace in the reply.
	ReplyTrace bool
	Behavior   Behavior
	Logger     ports.Logger
}

// Server is a stand-in for the sequencer simulator. It serves one client at a
// time and renders each run into a trace file.
type Server struct {
	cfg       Config
	latencies [domain.BufferCount]uint32
	logger    ports.Logger

	mu sync.Mutex
	ln net.Listener
}

// New validates cfg and returns a server.
func New(cfg Config) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = log.NewNoopLogger()
	}
	if cfg.Behavior == "" {
		cfg.Behavior = BehaviorNormal
	}
	board, err := compiler.LookupBoard(cfg.Board)
	if err != nil {
		return nil, err
	}
	return &Server{
		cfg:       cfg,
		latencies: board.Latencies,
		logger:    cfg.Logger.With(log.String("component", "loopback")),
	}, nil
}

// Listen binds the configured address.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	return nil
}

// Addr returns the bound address, or the configured one before Listen.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.cfg.Addr
}

// ListenAndServe listens and serves until shutdown or ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Serve accepts clients until one sends shutdown or ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()
	if ln == nil {
		return errors.New("loopback: Serve before Listen")
	}
	defer ln.Close()

	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	s.logger.Info("listening", log.String("addr", ln.Addr().String()))
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		done, err := s.handle(ctx, conn)
		if err != nil {
			s.logger.Warn("connection ended", log.Err(err))
		}
		if done {
			return nil
		}
	}
}

// handle serves one connection. It reports true once the server should exit.
func (s *Server) handle(ctx context.Context, conn net.Conn) (bool, error) {
	sc := socket.NewServerConn(conn)
	defer sc.Close()

	for {
		req, err := sc.ReadRequest()
		switch {
		case errors.Is(err, io.EOF):
			return false, nil
		case errors.Is(err, socket.ErrUnknownCommand):
			msg := fmt.Sprintf("unsupported command %v", req.Names)
			if err := sc.WriteReply(req.Index, domain.Reply{Messages: domain.Messages{Errors: []string{msg}}}); err != nil {
				return false, err
			}
			continue
		case err != nil:
			return false, err
		}

		if req.Command.Kind() == domain.CommandShutdown {
			if s.cfg.Behavior == BehaviorHang {
				s.logger.Warn("ignoring shutdown")
				<-ctx.Done()
			}
			s.logger.Debug("shutdown received")
			return true, nil
		}

		if s.cfg.Behavior == BehaviorDrop {
			s.logger.Warn("dropping run request")
			return false, nil
		}
		if err := sc.WriteReply(req.Index, s.run(req.Command.Payload())); err != nil {
			return false, err
		}
	}
}

func (s *Server) run(payload []byte) domain.Reply {
	var reply domain.Reply
	words, err := compiler.Words(payload)
	if err == nil {
		var trace domain.Trace
		trace, err = Render(words, s.latencies, s.cfg.StartupOffset)
		if err == nil {
			return s.finish(words, trace)
		}
	}
	reply.Messages.Errors = append(reply.Messages.Errors, err.Error())
	return reply
}

func (s *Server) finish(words []uint32, trace domain.Trace) domain.Reply {
	writes := (len(words) - domain.BufferCount) / 2
	reply := domain.Reply{
		Return: map[string]interface{}{"writes": writes, "rows": len(trace)},
	}
	reply.Messages.Infos = append(reply.Messages.Infos,
		fmt.Sprintf("ran %d writes into %d trace rows", writes, len(trace)))

	if s.cfg.CSVPath != "" {
		if err := writeCSVFile(s.cfg.CSVPath, trace); err != nil {
			reply.Messages.Errors = append(reply.Messages.Errors, fmt.Sprintf("write trace: %v", err))
		}
	}
	if s.cfg.FSTPath != "" {
		reply.Messages.Warnings = append(reply.Messages.Warnings, "fst dump is not supported, only csv was written")
	}
	if s.cfg.ReplyTrace {
		reply.Trace = trace
	}
	s.logger.Debug("sequence run", log.Int("writes", writes), log.Int("rows", len(trace)))
	return reply
}
