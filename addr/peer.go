package addr

// PeerID is an opaque, base58-textual peer identifier. Two PeerIDs
// are equal iff their textual forms match.
type PeerID string

// String returns the base58 textual form.
func (id PeerID) String() string {
	return string(id)
}

// Peer is a read-only snapshot of everything the swarm knows about one
// remote node: its identity, the addresses registered for it, and the
// address it is currently connected over, if any.
//
// Peer is a value, not a handle: every mutation goes through the
// owning Swarm, which atomically replaces its internal entry and hands
// out a fresh snapshot. Callers that hold an older Peer value may
// observe stale state.
type Peer struct {
	ID               PeerID
	Addresses        []Multiaddr
	ConnectedAddress *Multiaddr
}

// Connected reports whether this snapshot observed a live connection.
func (p Peer) Connected() bool {
	return p.ConnectedAddress != nil
}

// HasAddress reports whether a is present in p's address set, compared
// by canonical textual form.
func (p Peer) HasAddress(a Multiaddr) bool {
	for _, existing := range p.Addresses {
		if existing.Equal(a) {
			return true
		}
	}
	return false
}
