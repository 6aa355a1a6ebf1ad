package swarm

import (
	"context"

	"github.com/dep2p/go-swarm/addr"
	"github.com/dep2p/go-swarm/conn"
	"github.com/dep2p/go-swarm/transport"
)

// StartListening binds a and returns the dial-me address: the
// effective bound address extended with /p2p/<localPeer.id>. A second
// call with the same textual address fails ErrAlreadyListening. If no
// registered transport matches any of a's protocol segments, this
// fails ErrNoTransport.
func (s *Swarm) StartListening(ctx context.Context, a addr.Multiaddr) (addr.Multiaddr, error) {
	if err := s.requireStarted(); err != nil {
		return addr.Multiaddr{}, err
	}

	key := a.String()

	s.listenersMu.Lock()
	if _, exists := s.listeners[key]; exists {
		s.listenersMu.Unlock()
		return addr.Multiaddr{}, ErrAlreadyListening
	}
	// Reserve the slot before the transport call so a concurrent
	// StartListening for the same address observes AlreadyListening
	// rather than racing the transport.
	s.listeners[key] = &listenerEntry{}
	s.listenersMu.Unlock()

	tr, ok := s.lookupTransport(a)
	if !ok {
		s.removeListener(key)
		return addr.Multiaddr{}, ErrNoTransport
	}

	bound, handle, err := tr.Listen(ctx, a, s.onAccept)
	if err != nil {
		s.removeListener(key)
		return addr.Multiaddr{}, err
	}

	s.listenersMu.Lock()
	s.listeners[key] = &listenerEntry{handle: handle}
	if s.localAddresses == nil {
		s.localAddresses = make(map[string]addr.Multiaddr)
	}
	s.localAddresses[a.String()] = a
	s.listenersMu.Unlock()

	advertised := bound.WithIdentity(s.localPeer)
	logger.Info("listening", "addr", advertised.String())
	return advertised, nil
}

func (s *Swarm) removeListener(key string) {
	s.listenersMu.Lock()
	delete(s.listeners, key)
	s.listenersMu.Unlock()
}

// StopListening cancels a's listener and removes it from the local
// address list. Unknown addresses are a silent no-op.
func (s *Swarm) StopListening(a addr.Multiaddr) error {
	if err := s.requireStarted(); err != nil {
		return err
	}

	key := a.String()
	s.listenersMu.Lock()
	entry, ok := s.listeners[key]
	if ok {
		delete(s.listeners, key)
		delete(s.localAddresses, a.String())
	}
	s.listenersMu.Unlock()

	if ok && entry.handle != nil {
		if err := entry.handle.Cancel(); err != nil {
			logger.Warn("listener close failed", "addr", key, "error", err)
		}
	}
	return nil
}

// onAccept is wired as the transport.AcceptFunc for every listener
// this Swarm starts. It builds a Connection and runs the inbound
// handshake; on any failure the connection is disposed and logged,
// never surfaced (there is no caller to receive the error). The
// remote peer's identity is unknown at accept time, so the peer table
// is untouched; registering accepted peers belongs to the layer that
// learns their identity during the handshake.
func (s *Swarm) onAccept(stream transport.Conn, local, remote addr.Multiaddr) {
	c := conn.New(s.localPeer, "", &local, remote, stream, s.handshake)

	if err := c.Respond(context.Background()); err != nil {
		logger.Warn("inbound handshake failed", "remote", remote.String(), "error", err)
		c.Dispose()
		return
	}

	logger.Info("accepted connection", "remote", remote.String())
}
