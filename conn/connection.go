// Package conn implements the Connection object: a thin wrapper
// around one duplex stream plus the two abstract handshake extension
// points the swarm invokes and otherwise treats as opaque.
package conn

import (
	"context"
	"sync"

	"github.com/dep2p/go-swarm/addr"
	"github.com/dep2p/go-swarm/transport"
)

// Handshake is the abstract extension point a Connection calls into
// on dial success (Initiate) or inbound accept (Respond). Both are
// opaque to the swarm: they either succeed (stream usable) or fail
// (connection closed, error surfaced). Security and stream
// multiplexing negotiation plug in here; DefaultHandshake is the
// trivial no-op implementation used when nothing is plugged in.
type Handshake interface {
	Initiate(ctx context.Context, c *Connection) error
	Respond(ctx context.Context, c *Connection) error
}

// DefaultHandshake performs no negotiation and always succeeds.
type DefaultHandshake struct{}

func (DefaultHandshake) Initiate(context.Context, *Connection) error { return nil }
func (DefaultHandshake) Respond(context.Context, *Connection) error  { return nil }

// Connection is the swarm's record of one duplex stream to a remote
// peer. It holds its remote peer by PeerID only, never a reference to
// the Peer struct itself; the Swarm's streams table is the single
// source of truth for whether a peer is connected.
type Connection struct {
	LocalPeer  addr.PeerID
	RemotePeer addr.PeerID
	LocalAddr  *addr.Multiaddr
	RemoteAddr addr.Multiaddr
	Stream     transport.Conn

	handshake Handshake
	closeOnce sync.Once
	closeErr  error
}

// New wraps stream into a Connection that will use hs for its
// handshake extension points. A nil hs uses DefaultHandshake.
func New(local, remote addr.PeerID, localAddr *addr.Multiaddr, remoteAddr addr.Multiaddr, stream transport.Conn, hs Handshake) *Connection {
	if hs == nil {
		hs = DefaultHandshake{}
	}
	return &Connection{
		LocalPeer:  local,
		RemotePeer: remote,
		LocalAddr:  localAddr,
		RemoteAddr: remoteAddr,
		Stream:     stream,
		handshake:  hs,
	}
}

// Initiate runs the outbound handshake extension point.
func (c *Connection) Initiate(ctx context.Context) error {
	return c.handshake.Initiate(ctx, c)
}

// Respond runs the inbound handshake extension point.
func (c *Connection) Respond(ctx context.Context) error {
	return c.handshake.Respond(ctx, c)
}

// Dispose closes the underlying stream exactly once. Safe to call
// multiple times and from multiple goroutines.
func (c *Connection) Dispose() error {
	c.closeOnce.Do(func() {
		if c.Stream != nil {
			c.closeErr = c.Stream.Close()
		}
	})
	return c.closeErr
}
