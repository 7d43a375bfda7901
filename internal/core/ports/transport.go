package ports

import (
	"context"

	"emberlink/internal/core/domain"
)

// Channel is one open logical stream over the opaque radio transport.
type Channel interface {
	Spec() domain.ChannelSpec

	// Send hands a payload to the transport. A transient transport error
	// is returned to the caller, who is expected to drop the payload.
	Send(payload []byte) error

	// Receive blocks until a payload arrives, ctx is cancelled, or the
	// channel is closed. A closed channel returns domain.ErrChannelClosed.
	Receive(ctx context.Context) ([]byte, error)

	// Close releases the underlying sockets and unblocks pending Receives.
	// Safe to call more than once.
	Close() error
}

// Transport binds ChannelSpecs to live channels for one radio interface.
type Transport interface {
	Open(spec domain.ChannelSpec) (Channel, error)
	Close() error
}
