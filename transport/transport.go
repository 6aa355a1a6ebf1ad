// Package transport defines the abstract connect/listen contract the
// swarm dials and accepts through, and the registry that maps a
// protocol name to a concrete Transport.
package transport

import (
	"context"
	"io"

	"github.com/dep2p/go-swarm/addr"
)

// Conn is a duplex byte stream bound to a concrete local and remote
// address, the result of either a successful Connect or an accepted
// inbound connection.
type Conn interface {
	io.ReadWriteCloser
	LocalAddr() addr.Multiaddr
	RemoteAddr() addr.Multiaddr
}

// AcceptFunc receives one inbound connection's stream and the local
// and remote addresses it was accepted on.
type AcceptFunc func(conn Conn, local, remote addr.Multiaddr)

// ListenerHandle lets the caller cancel a running accept loop.
// Cancel is idempotent and reports any failure closing the underlying
// listener; repeat calls return nil.
type ListenerHandle interface {
	Cancel() error
}

// Transport is the abstract contract a concrete network implementation
// (e.g. TCP) satisfies. A Transport is selected by scanning an
// address's transport-capable protocol segments (addr.IsTransportProtocol)
// in order for the first one whose name is registered in the Registry.
type Transport interface {
	// Connect dials addr, returning ErrTransportUnavailable if this
	// transport cannot service addr, ErrConnectCancelled if ctx is
	// done before the dial completes, or a *ConnectError wrapping the
	// underlying cause otherwise.
	Connect(ctx context.Context, a addr.Multiaddr) (Conn, error)

	// Listen binds addr (resolving a zero port, if present) and
	// returns the effective bound address plus a handle to stop the
	// detached accept loop that delivers inbound connections to
	// onAccept until the handle is cancelled or ctx is done.
	Listen(ctx context.Context, a addr.Multiaddr, onAccept AcceptFunc) (addr.Multiaddr, ListenerHandle, error)
}
