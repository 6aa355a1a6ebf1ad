// Package swarm implements the Swarm coordinator: the sole owner of
// peer discovery, dialing, listening, and connection lifecycle for
// this node. It composes the addr, policy, transport, and conn
// packages. Routing, block exchange, NAT traversal, and persistence
// of the peer set across runs all live above or outside this package.
package swarm

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/dep2p/go-swarm/addr"
	"github.com/dep2p/go-swarm/conn"
	"github.com/dep2p/go-swarm/internal/keylock"
	"github.com/dep2p/go-swarm/internal/log"
	"github.com/dep2p/go-swarm/policy"
	"github.com/dep2p/go-swarm/transport"
)

var logger = log.Logger("swarm")

// stopDisconnectConcurrency bounds how many peers Stop disconnects at
// once.
const stopDisconnectConcurrency = 16

// phase is the Swarm's lifecycle state.
type phase int32

const (
	phaseStopped phase = iota
	phaseStarted
	phaseStopping
)

// peerEntry is the mutable record backing one addr.Peer snapshot.
// Swarm is its sole mutator; every read outside the swarm package
// sees a copied addr.Peer value.
type peerEntry struct {
	id               addr.PeerID
	addresses        map[string]addr.Multiaddr
	connectedAddress *addr.Multiaddr
}

func (e *peerEntry) snapshot() addr.Peer {
	addrs := make([]addr.Multiaddr, 0, len(e.addresses))
	for _, a := range e.addresses {
		addrs = append(addrs, a)
	}
	var connected *addr.Multiaddr
	if e.connectedAddress != nil {
		c := *e.connectedAddress
		connected = &c
	}
	return addr.Peer{ID: e.id, Addresses: addrs, ConnectedAddress: connected}
}

// listenerEntry is one live listener. handle is nil while the slot is
// reserved but the transport bind has not completed yet.
type listenerEntry struct {
	handle transport.ListenerHandle
}

// Swarm owns the peer, stream, and listener tables and drives every
// connection lifecycle. Construct one with NewSwarm; it starts in the
// Stopped phase and every mutating operation except Start requires
// the Started phase.
type Swarm struct {
	localPeer addr.PeerID
	config    *Config
	resolver  addr.Resolver
	registry  *transport.Registry
	handshake conn.Handshake
	policy    policy.Evaluator

	phase atomic.Int32

	peersMu   sync.RWMutex
	peers     map[addr.PeerID]*peerEntry
	peerLocks *keylock.KeyLock

	streamsMu sync.RWMutex
	streams   map[addr.PeerID]*conn.Connection

	listenersMu sync.RWMutex
	listeners   map[string]*listenerEntry

	// localAddresses is localPeer's observed-address list, guarded by
	// listenersMu since it is only ever mutated alongside the
	// listeners table.
	localAddresses map[string]addr.Multiaddr
}

// NewSwarm constructs a Swarm for localPeer, bound to registry for
// all transport dispatch. It starts Stopped; call Start before using
// any other method.
func NewSwarm(localPeer addr.PeerID, registry *transport.Registry, opts ...Option) (*Swarm, error) {
	s := &Swarm{
		localPeer:      localPeer,
		config:         DefaultConfig(),
		resolver:       addr.NullResolver{},
		registry:       registry,
		handshake:      conn.DefaultHandshake{},
		peers:          make(map[addr.PeerID]*peerEntry),
		peerLocks:      keylock.New(),
		streams:        make(map[addr.PeerID]*conn.Connection),
		listeners:      make(map[string]*listenerEntry),
		localAddresses: make(map[string]addr.Multiaddr),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.registry == nil {
		return nil, ErrInvalidConfig
	}
	return s, nil
}

// LocalPeer returns the node's own PeerID.
func (s *Swarm) LocalPeer() addr.PeerID {
	return s.localPeer
}

// LocalAddresses returns a snapshot of the addresses this node has
// observed itself listening on.
func (s *Swarm) LocalAddresses() []addr.Multiaddr {
	s.listenersMu.RLock()
	defer s.listenersMu.RUnlock()
	out := make([]addr.Multiaddr, 0, len(s.localAddresses))
	for _, a := range s.localAddresses {
		out = append(out, a)
	}
	return out
}

// Start transitions Stopped -> Started. It is idempotent: calling it
// again while already Started is a no-op. Beyond the phase change it
// only logs.
func (s *Swarm) Start() error {
	if s.phase.CompareAndSwap(int32(phaseStopped), int32(phaseStarted)) {
		logger.Info("swarm started", "localPeer", log.TruncateID(string(s.localPeer), 12))
		return nil
	}
	return nil
}

// Stop transitions to Stopping, tears down every listener and
// connected peer, clears all tables, and resets policy lists to
// empty. It is idempotent. Per-listener-close and per-disconnect
// failures never abort the teardown; they are collected and returned
// as one aggregate error.
func (s *Swarm) Stop() error {
	if !s.phase.CompareAndSwap(int32(phaseStarted), int32(phaseStopping)) {
		return nil
	}

	var errs error

	s.listenersMu.Lock()
	for key, l := range s.listeners {
		if l.handle != nil {
			if err := l.handle.Cancel(); err != nil {
				errs = multierr.Append(errs, err)
			}
		}
		delete(s.listeners, key)
	}
	s.localAddresses = make(map[string]addr.Multiaddr)
	s.listenersMu.Unlock()

	s.peersMu.RLock()
	peerIDs := make([]addr.PeerID, 0, len(s.peers))
	for id := range s.peers {
		peerIDs = append(peerIDs, id)
	}
	s.peersMu.RUnlock()

	// Disconnects are independent per peer; bound their concurrency
	// rather than firing len(peerIDs) unbounded goroutines.
	var wg errgroup.Group
	wg.SetLimit(stopDisconnectConcurrency)
	var mu sync.Mutex
	for _, id := range peerIDs {
		id := id
		s.peersMu.RLock()
		entry, ok := s.peers[id]
		var connected *addr.Multiaddr
		if ok {
			connected = entry.connectedAddress
		}
		s.peersMu.RUnlock()
		if connected == nil {
			continue
		}
		addrToClose := *connected
		wg.Go(func() error {
			if err := s.disconnectLocked(addrToClose); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	wg.Wait()

	s.peersMu.Lock()
	s.peers = make(map[addr.PeerID]*peerEntry)
	s.peersMu.Unlock()

	s.streamsMu.Lock()
	s.streams = make(map[addr.PeerID]*conn.Connection)
	s.streamsMu.Unlock()

	s.policy.Allow.Reset()
	s.policy.Deny.Reset()

	s.phase.Store(int32(phaseStopped))
	logger.Info("swarm stopped")
	return errs
}

// AllowList exposes the live allow-list for read and mutation.
func (s *Swarm) AllowList() *policy.List {
	return &s.policy.Allow
}

// DenyList exposes the live deny-list for read and mutation.
func (s *Swarm) DenyList() *policy.List {
	return &s.policy.Deny
}

// IsAllowed delegates to the policy evaluator.
func (s *Swarm) IsAllowed(a addr.Multiaddr) bool {
	return s.policy.Allowed(a)
}

// IsNotAllowed is the negation of IsAllowed.
func (s *Swarm) IsNotAllowed(a addr.Multiaddr) bool {
	return s.policy.NotAllowed(a)
}

// KnownPeers returns a snapshot sequence of every known Peer.
func (s *Swarm) KnownPeers() []addr.Peer {
	s.peersMu.RLock()
	defer s.peersMu.RUnlock()
	out := make([]addr.Peer, 0, len(s.peers))
	for _, e := range s.peers {
		out = append(out, e.snapshot())
	}
	return out
}

// KnownPeerAddresses flattens every known Peer's address set.
func (s *Swarm) KnownPeerAddresses() []addr.Multiaddr {
	s.peersMu.RLock()
	defer s.peersMu.RUnlock()
	var out []addr.Multiaddr
	for _, e := range s.peers {
		for _, a := range e.addresses {
			out = append(out, a)
		}
	}
	return out
}

func (s *Swarm) requireStarted() error {
	if phase(s.phase.Load()) != phaseStarted {
		return ErrClosed
	}
	return nil
}

func newDialID() string {
	return uuid.NewString()
}
