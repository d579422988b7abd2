package ports

import (
	"context"

	"github.com/bft-labs/seqharness/internal/domain"
)

// SequencerClient speaks the command protocol over one connection.
// A client has a single owner; at most one command is in flight.
type SequencerClient interface {
	// Command sends cmd and blocks for its reply. Transport and framing
	// failures are returned as *domain.ProtocolError.
	Command(ctx context.Context, cmd domain.Command) (domain.Reply, error)

	// Shutdown asks the server to exit. It does not wait for a reply.
	Shutdown(ctx context.Context) error

	// Close releases the connection. Safe to call more than once.
	Close() error
}

// Dialer opens client connections.
type Dialer interface {
	Dial(ctx context.Context, addr string) (SequencerClient, error)
}
