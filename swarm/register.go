package swarm

import (
	"github.com/dep2p/go-swarm/addr"
	"github.com/dep2p/go-swarm/internal/log"
)

// RegisterPeer validates a, evaluates policy, and atomically upserts
// it into the peer table, returning the resulting Peer snapshot. The
// upsert is linearizable with respect to other RegisterPeer and
// Connect calls for the same peer-ID, enforced by a per-peer-ID lock.
func (s *Swarm) RegisterPeer(a addr.Multiaddr) (addr.Peer, error) {
	if err := s.requireStarted(); err != nil {
		return addr.Peer{}, err
	}

	id, ok := a.IdentitySegment()
	if !ok {
		return addr.Peer{}, ErrMissingIdentity
	}
	if id == s.localPeer {
		return addr.Peer{}, ErrSelfRegistration
	}
	if s.policy.NotAllowed(a) {
		return addr.Peer{}, ErrPolicyDenied
	}

	return s.upsertPeer(id, a), nil
}

// upsertPeer inserts a new entry for id or adds a to the existing
// entry's address set. Re-registering a known address is a no-op.
func (s *Swarm) upsertPeer(id addr.PeerID, a addr.Multiaddr) addr.Peer {
	s.peerLocks.Lock(string(id))
	defer s.peerLocks.Unlock(string(id))

	s.peersMu.Lock()
	entry, ok := s.peers[id]
	if !ok {
		entry = &peerEntry{id: id, addresses: make(map[string]addr.Multiaddr)}
		s.peers[id] = entry
	}
	entry.addresses[a.String()] = a
	snap := entry.snapshot()
	s.peersMu.Unlock()

	logger.Debug("peer registered", "peerID", log.TruncateID(string(id), 12), "addr", a.String())
	return snap
}
