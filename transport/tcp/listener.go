package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	catcher "github.com/jbenet/go-temp-err-catcher"

	"github.com/dep2p/go-swarm/addr"
	"github.com/dep2p/go-swarm/transport"
)

// Listen binds a and runs a detached accept loop delivering inbound
// connections to onAccept until the returned handle is cancelled or
// ctx is done. A zero tcp port resolves to the kernel-assigned port,
// reflected in the returned effective address.
func (t *Transport) Listen(ctx context.Context, a addr.Multiaddr, onAccept transport.AcceptFunc) (addr.Multiaddr, transport.ListenerHandle, error) {
	tcpAddr, err := resolveTCPAddr(a)
	if err != nil {
		return addr.Multiaddr{}, nil, fmt.Errorf("%w: %v", transport.ErrTransportUnavailable, err)
	}

	ln, err := net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		return addr.Multiaddr{}, nil, &transport.ConnectError{Addr: a.String(), Cause: err}
	}

	effective, err := addrFromNetAddr(ln.Addr())
	if err != nil {
		ln.Close()
		return addr.Multiaddr{}, nil, &transport.ConnectError{Addr: a.String(), Cause: err}
	}
	if id, ok := a.IdentitySegment(); ok {
		effective = effective.WithIdentity(id)
	}

	h := &handle{ln: ln}

	loopCtx, cancel := context.WithCancel(ctx)
	go func() {
		<-loopCtx.Done()
		ln.Close()
	}()

	go h.acceptLoop(loopCtx, effective, onAccept)

	h.stop = cancel
	return effective, h, nil
}

// handle is the transport.ListenerHandle returned by Listen.
type handle struct {
	ln   *net.TCPListener
	stop context.CancelFunc

	once sync.Once
}

// Cancel stops the accept loop and closes the listener. Idempotent.
func (h *handle) Cancel() error {
	var err error
	h.once.Do(func() {
		if h.stop != nil {
			h.stop()
		}
		if cerr := h.ln.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = cerr
		}
	})
	return err
}

// acceptLoop accepts inbound connections until ctx is cancelled,
// backing off on temporary errors instead of busy-looping.
func (h *handle) acceptLoop(ctx context.Context, local addr.Multiaddr, onAccept transport.AcceptFunc) {
	var errs catcher.TempErrCatcher

	for {
		rawConn, err := h.ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errs.IsTemporary(err) {
				time.Sleep(20 * time.Millisecond)
				continue
			}
			return
		}

		remote, err := addrFromNetAddr(rawConn.RemoteAddr())
		if err != nil {
			rawConn.Close()
			continue
		}

		go onAccept(&conn{Conn: rawConn, local: local, remote: remote}, local, remote)
	}
}
