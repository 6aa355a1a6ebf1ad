package tcp

import (
	"net"

	"github.com/dep2p/go-swarm/addr"
)

// conn adapts a net.Conn to transport.Conn, caching the Multiaddr
// forms of its local/remote endpoints.
type conn struct {
	net.Conn
	local  addr.Multiaddr
	remote addr.Multiaddr
}

func (c *conn) LocalAddr() addr.Multiaddr  { return c.local }
func (c *conn) RemoteAddr() addr.Multiaddr { return c.remote }
