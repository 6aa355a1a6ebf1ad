// Package tcp is the built-in TCP transport. It hands back a raw
// net.Conn-backed stream; the handshake extension point lives on the
// Connection object, not here.
package tcp

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/dep2p/go-swarm/addr"
	"github.com/dep2p/go-swarm/transport"
)

// Name is the multiaddr protocol name this transport registers under.
const Name = "tcp"

// Transport is the TCP implementation of transport.Transport.
type Transport struct {
	dialer net.Dialer
}

// New returns a ready-to-use TCP transport.
func New() *Transport {
	return &Transport{}
}

var _ transport.Transport = (*Transport)(nil)

// Connect dials addr over TCP.
func (t *Transport) Connect(ctx context.Context, a addr.Multiaddr) (transport.Conn, error) {
	tcpAddr, err := resolveTCPAddr(a)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", transport.ErrTransportUnavailable, err)
	}

	rawConn, err := t.dialer.DialContext(ctx, "tcp", tcpAddr.String())
	if err != nil {
		if ctx.Err() != nil {
			return nil, transport.ErrConnectCancelled
		}
		return nil, &transport.ConnectError{Addr: a.String(), Cause: err}
	}

	local, err := addrFromNetAddr(rawConn.LocalAddr())
	if err != nil {
		rawConn.Close()
		return nil, &transport.ConnectError{Addr: a.String(), Cause: err}
	}
	remote, err := addrFromNetAddr(rawConn.RemoteAddr())
	if err != nil {
		rawConn.Close()
		return nil, &transport.ConnectError{Addr: a.String(), Cause: err}
	}

	return &conn{Conn: rawConn, local: local, remote: remote}, nil
}

// resolveTCPAddr extracts the host/port this transport can dial from
// a, failing if a carries neither an ip4 nor ip6 segment, or no tcp
// segment.
func resolveTCPAddr(a addr.Multiaddr) (*net.TCPAddr, error) {
	host, ok := a.ValueForProtocol("ip4")
	if !ok {
		host, ok = a.ValueForProtocol("ip6")
		if !ok {
			return nil, fmt.Errorf("address carries no ip4/ip6 segment: %s", a)
		}
	}

	portStr, ok := a.ValueForProtocol("tcp")
	if !ok {
		return nil, fmt.Errorf("address carries no tcp segment: %s", a)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid tcp port %q: %w", portStr, err)
	}

	ip := net.ParseIP(host)
	if ip == nil {
		return nil, fmt.Errorf("invalid ip %q", host)
	}
	return &net.TCPAddr{IP: ip, Port: port}, nil
}

// addrFromNetAddr renders a net.Addr (always a *net.TCPAddr for this
// transport) back into a Multiaddr.
func addrFromNetAddr(na net.Addr) (addr.Multiaddr, error) {
	tcpAddr, ok := na.(*net.TCPAddr)
	if !ok {
		return addr.Multiaddr{}, fmt.Errorf("unexpected address type %T", na)
	}
	proto := "ip4"
	if tcpAddr.IP.To4() == nil {
		proto = "ip6"
	}
	return addr.Parse(fmt.Sprintf("/%s/%s/tcp/%d", proto, tcpAddr.IP.String(), tcpAddr.Port))
}
