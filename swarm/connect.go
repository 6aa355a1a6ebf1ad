package swarm

import (
	"context"

	"github.com/dep2p/go-swarm/addr"
	"github.com/dep2p/go-swarm/conn"
	"github.com/dep2p/go-swarm/internal/log"
	"github.com/dep2p/go-swarm/transport"
)

// Connect registers a's peer, then dials it if not already connected,
// returning the resulting Peer. It returns (addr.Peer{}, ErrCancelled)
// if ctx is done before a dial completes, and a *UnreachableError
// aggregating every per-address failure if every candidate address
// fails. Candidates are tried in resolver order; the first stream wins.
func (s *Swarm) Connect(ctx context.Context, a addr.Multiaddr) (addr.Peer, error) {
	if err := s.requireStarted(); err != nil {
		return addr.Peer{}, err
	}

	peer, err := s.RegisterPeer(a)
	if err != nil {
		return addr.Peer{}, err
	}
	if peer.Connected() {
		return peer, nil
	}

	dialID := newDialID()

	candidates, err := s.resolver.Resolve(ctx, a)
	if err != nil {
		return addr.Peer{}, &UnreachableError{Peer: peer.ID, Attempts: []DialAttempt{{Addr: a, Err: err}}}
	}
	if len(candidates) == 0 {
		return addr.Peer{}, &UnreachableError{Peer: peer.ID, Attempts: []DialAttempt{{Addr: a, Err: ErrNoKnownAddress}}}
	}
	if budget := s.config.MaxDialAttempts; budget > 0 && len(candidates) > budget {
		logger.Debug("dial candidates over budget, truncating", "dialID", dialID, "have", len(candidates), "budget", budget)
		candidates = candidates[:budget]
	}

	var attempts []DialAttempt
	for _, candidate := range candidates {
		select {
		case <-ctx.Done():
			return addr.Peer{}, ErrCancelled
		default:
		}

		tr, ok := s.lookupTransport(candidate)
		if !ok {
			attempts = append(attempts, DialAttempt{Addr: candidate, Err: ErrNoTransport})
			continue
		}

		logger.Debug("dial attempt", "dialID", dialID, "peerID", log.TruncateID(string(peer.ID), 12), "addr", candidate.String())

		dialCtx, cancel := context.WithTimeout(ctx, s.config.DialTimeout)
		stream, err := tr.Connect(dialCtx, candidate)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return addr.Peer{}, ErrCancelled
			}
			attempts = append(attempts, DialAttempt{Addr: candidate, Err: err})
			continue
		}

		c := conn.New(s.localPeer, peer.ID, nil, candidate, stream, s.handshake)
		if err := c.Initiate(ctx); err != nil {
			c.Dispose()
			attempts = append(attempts, DialAttempt{Addr: candidate, Err: err})
			continue
		}

		updated, won := s.commitStream(peer.ID, candidate, c)
		if !won {
			// A concurrent Connect for the same peer committed first;
			// its stream stays authoritative and ours is disposed.
			c.Dispose()
			logger.Debug("lost dial race", "dialID", dialID, "peerID", log.TruncateID(string(peer.ID), 12))
			return updated, nil
		}
		logger.Info("connected", "dialID", dialID, "peerID", log.TruncateID(string(peer.ID), 12), "addr", candidate.String())
		return updated, nil
	}

	return addr.Peer{}, &UnreachableError{Peer: peer.ID, Attempts: attempts}
}

// lookupTransport scans a's protocol segments in order and returns
// the first registered transport. Earlier segments win.
func (s *Swarm) lookupTransport(a addr.Multiaddr) (transport.Transport, bool) {
	for _, c := range a.Components() {
		if !addr.IsTransportProtocol(c.Protocol.Name) {
			continue
		}
		if tr, ok := s.registry.Lookup(c.Protocol.Name); ok {
			return tr, true
		}
	}
	return nil, false
}

// commitStream records a dial's result under the per-peer lock: the
// stream-table check, the stream store, and the connectedAddress write
// happen as one atomic step with respect to concurrent Connect and
// Disconnect calls for the same peer. If another dial already holds
// the stream slot, nothing is written and won is false; the caller
// must dispose its own stream.
func (s *Swarm) commitStream(id addr.PeerID, a addr.Multiaddr, c *conn.Connection) (peer addr.Peer, won bool) {
	s.peerLocks.Lock(string(id))
	defer s.peerLocks.Unlock(string(id))

	s.streamsMu.Lock()
	if _, exists := s.streams[id]; exists {
		s.streamsMu.Unlock()
		return s.snapshotPeer(id), false
	}
	s.streams[id] = c
	s.streamsMu.Unlock()

	s.peersMu.Lock()
	entry, ok := s.peers[id]
	if !ok {
		entry = &peerEntry{id: id, addresses: make(map[string]addr.Multiaddr)}
		s.peers[id] = entry
	}
	ca := a
	entry.connectedAddress = &ca
	entry.addresses[a.String()] = a
	snap := entry.snapshot()
	s.peersMu.Unlock()
	return snap, true
}

// snapshotPeer returns the current snapshot for id, or a bare Peer if
// the entry has been removed.
func (s *Swarm) snapshotPeer(id addr.PeerID) addr.Peer {
	s.peersMu.RLock()
	defer s.peersMu.RUnlock()
	if entry, ok := s.peers[id]; ok {
		return entry.snapshot()
	}
	return addr.Peer{ID: id}
}

// Disconnect tears down any live connection to a's identified peer.
// Outside the Started phase it returns ErrClosed; otherwise it never
// fails: a missing identity segment, an unknown peer, or an
// already-disconnected peer are all silent no-ops, and a failure
// closing the stream is logged. The Peer itself is not removed from
// the peer table, so its known addresses survive.
func (s *Swarm) Disconnect(a addr.Multiaddr) error {
	if err := s.requireStarted(); err != nil {
		return err
	}
	if err := s.disconnectLocked(a); err != nil {
		logger.Warn("stream close failed", "addr", a.String(), "error", err)
	}
	return nil
}

// disconnectLocked implements Disconnect without the Started-phase
// check, so Stop can reuse it while in the Stopping phase.
func (s *Swarm) disconnectLocked(a addr.Multiaddr) error {
	id, ok := a.IdentitySegment()
	if !ok {
		return nil
	}

	s.peerLocks.Lock(string(id))
	defer s.peerLocks.Unlock(string(id))

	s.peersMu.Lock()
	entry, ok := s.peers[id]
	if !ok || entry.connectedAddress == nil {
		s.peersMu.Unlock()
		return nil
	}
	entry.connectedAddress = nil
	s.peersMu.Unlock()

	s.streamsMu.Lock()
	c, ok := s.streams[id]
	if ok {
		delete(s.streams, id)
	}
	s.streamsMu.Unlock()

	if !ok {
		return nil
	}

	logger.Debug("disconnect", "peerID", log.TruncateID(string(id), 12))
	if err := c.Dispose(); err != nil {
		return &transport.ConnectError{Addr: a.String(), Cause: err}
	}
	return nil
}
