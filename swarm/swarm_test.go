package swarm

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"

	"github.com/dep2p/go-swarm/addr"
	"github.com/dep2p/go-swarm/conn"
	"github.com/dep2p/go-swarm/transport"
)

// fakeConn is an in-memory transport.Conn backed by net.Pipe, with a
// local/remote Multiaddr attached.
type fakeConn struct {
	net.Conn
	local, remote addr.Multiaddr
}

func (c *fakeConn) LocalAddr() addr.Multiaddr  { return c.local }
func (c *fakeConn) RemoteAddr() addr.Multiaddr { return c.remote }

func newFakeConnPair(local, remote addr.Multiaddr) (transport.Conn, transport.Conn) {
	a, b := net.Pipe()
	return &fakeConn{Conn: a, local: local, remote: remote}, &fakeConn{Conn: b, local: remote, remote: local}
}

// fakeTransport lets tests script per-address Connect outcomes and
// optionally support Listen.
type fakeTransport struct {
	mu        sync.Mutex
	failFor   map[string]error
	connected []string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{failFor: make(map[string]error)}
}

func (t *fakeTransport) failAddr(a string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failFor[a] = err
}

func (t *fakeTransport) Connect(ctx context.Context, a addr.Multiaddr) (transport.Conn, error) {
	t.mu.Lock()
	err, shouldFail := t.failFor[a.String()]
	t.mu.Unlock()
	if shouldFail {
		return nil, err
	}
	t.mu.Lock()
	t.connected = append(t.connected, a.String())
	t.mu.Unlock()
	local, _ := addr.Parse("/ip4/127.0.0.1/tcp/9")
	c, _ := newFakeConnPair(local, a)
	return c, nil
}

func (t *fakeTransport) Listen(ctx context.Context, a addr.Multiaddr, onAccept transport.AcceptFunc) (addr.Multiaddr, transport.ListenerHandle, error) {
	return a, &fakeHandle{}, nil
}

type fakeHandle struct {
	cancelled bool
}

func (h *fakeHandle) Cancel() error {
	h.cancelled = true
	return nil
}

func newTestSwarm(t *testing.T, localID string, tr transport.Transport) (*Swarm, *transport.Registry) {
	t.Helper()
	reg := transport.NewRegistry()
	reg.Register("tcp", tr)
	s, err := NewSwarm(addr.PeerID(localID), reg)
	if err != nil {
		t.Fatalf("NewSwarm failed: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	return s, reg
}

const localID = "Qmb5cLns1pMo9h8AYWaT6xLiydsRvgdCvbSLE3j1cA1cAL"
const remoteID = "Qmb5cLns1pMo9h8AYWaT6xLiydsRvgdCvbSLE3j1cA1REM"

func TestNewSwarmRequiresRegistry(t *testing.T) {
	if _, err := NewSwarm(addr.PeerID(localID), nil); err == nil {
		t.Fatalf("expected error for nil registry")
	}
}

func TestRegisterPeerMissingIdentity(t *testing.T) {
	s, _ := newTestSwarm(t, localID, newFakeTransport())
	_, err := s.RegisterPeer(addr.MustParse("/ip4/127.0.0.1/tcp/4001"))
	if !errors.Is(err, ErrMissingIdentity) {
		t.Errorf("expected ErrMissingIdentity, got %v", err)
	}
}

func TestRegisterPeerSelfRegistration(t *testing.T) {
	s, _ := newTestSwarm(t, localID, newFakeTransport())
	a := addr.MustParse("/ip4/1.2.3.4/tcp/4001/p2p/" + localID)
	_, err := s.RegisterPeer(a)
	if !errors.Is(err, ErrSelfRegistration) {
		t.Errorf("expected ErrSelfRegistration, got %v", err)
	}
}

func TestRegisterPeerPolicyDenied(t *testing.T) {
	s, _ := newTestSwarm(t, localID, newFakeTransport())
	a := addr.MustParse("/ip4/10.0.0.1/tcp/4001/p2p/" + remoteID)
	s.DenyList().Add(addr.MustParse("/ip4/10.0.0.1/tcp/4001/p2p/" + remoteID))

	_, err := s.RegisterPeer(a)
	if !errors.Is(err, ErrPolicyDenied) {
		t.Errorf("expected ErrPolicyDenied, got %v", err)
	}
}

func TestRegisterPeerTwiceIsIdempotent(t *testing.T) {
	s, _ := newTestSwarm(t, localID, newFakeTransport())
	a1 := addr.MustParse("/ip4/1.2.3.4/tcp/4001/p2p/" + remoteID)
	a2 := addr.MustParse("/ip4/5.6.7.8/tcp/4001/p2p/" + remoteID)

	if _, err := s.RegisterPeer(a1); err != nil {
		t.Fatalf("first register failed: %v", err)
	}
	if _, err := s.RegisterPeer(a2); err != nil {
		t.Fatalf("second register failed: %v", err)
	}

	peers := s.KnownPeers()
	if len(peers) != 1 {
		t.Fatalf("expected exactly one peer, got %d", len(peers))
	}
	if len(peers[0].Addresses) != 2 {
		t.Fatalf("expected 2 addresses, got %d", len(peers[0].Addresses))
	}

	if _, err := s.RegisterPeer(a1); err != nil {
		t.Fatalf("repeat register failed: %v", err)
	}
	peers = s.KnownPeers()
	if len(peers[0].Addresses) != 2 {
		t.Fatalf("expected idempotent re-register, got %d addresses", len(peers[0].Addresses))
	}
}

func TestConnectSucceedsOnThirdCandidate(t *testing.T) {
	tr := newFakeTransport()
	s, _ := newTestSwarm(t, localID, tr)

	a1 := addr.MustParse("/ip4/1.1.1.1/tcp/4001/p2p/" + remoteID)
	a2 := addr.MustParse("/ip4/2.2.2.2/tcp/4001/p2p/" + remoteID)
	a3 := addr.MustParse("/ip4/3.3.3.3/tcp/4001/p2p/" + remoteID)
	tr.failAddr(a1.String(), errors.New("boom1"))
	tr.failAddr(a2.String(), errors.New("boom2"))

	s.resolver = fakeResolver{out: []addr.Multiaddr{a1, a2, a3}}

	peer, err := s.Connect(context.Background(), a1)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if !peer.Connected() || peer.ConnectedAddress == nil || !peer.ConnectedAddress.Equal(a3) {
		t.Fatalf("expected connected via a3, got %+v", peer)
	}

	s.streamsMu.RLock()
	n := len(s.streams)
	s.streamsMu.RUnlock()
	if n != 1 {
		t.Errorf("expected exactly 1 stream, got %d", n)
	}
}

func TestConnectAllAttemptsFail(t *testing.T) {
	tr := newFakeTransport()
	s, _ := newTestSwarm(t, localID, tr)

	a1 := addr.MustParse("/ip4/1.1.1.1/tcp/4001/p2p/" + remoteID)
	tr.failAddr(a1.String(), errors.New("boom"))
	s.resolver = fakeResolver{out: []addr.Multiaddr{a1}}

	_, err := s.Connect(context.Background(), a1)
	var unreachable *UnreachableError
	if !errors.As(err, &unreachable) {
		t.Fatalf("expected *UnreachableError, got %v", err)
	}
	if len(unreachable.Attempts) != 1 {
		t.Errorf("expected 1 attempt, got %d", len(unreachable.Attempts))
	}
}

func TestConnectTwiceDialsOnce(t *testing.T) {
	tr := newFakeTransport()
	s, _ := newTestSwarm(t, localID, tr)
	a := addr.MustParse("/ip4/1.1.1.1/tcp/4001/p2p/" + remoteID)
	s.resolver = fakeResolver{out: []addr.Multiaddr{a}}

	if _, err := s.Connect(context.Background(), a); err != nil {
		t.Fatalf("first connect failed: %v", err)
	}
	if _, err := s.Connect(context.Background(), a); err != nil {
		t.Fatalf("second connect failed: %v", err)
	}

	tr.mu.Lock()
	n := len(tr.connected)
	tr.mu.Unlock()
	if n != 1 {
		t.Errorf("expected exactly 1 underlying transport.Connect call, got %d", n)
	}
}

func TestDisconnectIsIdempotent(t *testing.T) {
	tr := newFakeTransport()
	s, _ := newTestSwarm(t, localID, tr)
	a := addr.MustParse("/ip4/1.1.1.1/tcp/4001/p2p/" + remoteID)
	s.resolver = fakeResolver{out: []addr.Multiaddr{a}}

	if _, err := s.Connect(context.Background(), a); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	if err := s.Disconnect(a); err != nil {
		t.Fatalf("first disconnect failed: %v", err)
	}
	if err := s.Disconnect(a); err != nil {
		t.Fatalf("second disconnect failed: %v", err)
	}

	peers := s.KnownPeers()
	if len(peers) != 1 || peers[0].Connected() {
		t.Errorf("expected peer to survive disconnect with no live connection, got %+v", peers)
	}
}

func TestStartListeningReturnsDialMeAddress(t *testing.T) {
	tr := newFakeTransport()
	s, _ := newTestSwarm(t, localID, tr)

	bound, err := s.StartListening(context.Background(), addr.MustParse("/ip4/0.0.0.0/tcp/0"))
	if err != nil {
		t.Fatalf("StartListening failed: %v", err)
	}
	id, ok := bound.IdentitySegment()
	if !ok || id != addr.PeerID(localID) {
		t.Errorf("expected dial-me address ending in local id, got %s", bound)
	}
}

func TestStartListeningTwiceFailsAlreadyListening(t *testing.T) {
	tr := newFakeTransport()
	s, _ := newTestSwarm(t, localID, tr)

	a := addr.MustParse("/ip4/0.0.0.0/tcp/0")
	if _, err := s.StartListening(context.Background(), a); err != nil {
		t.Fatalf("first StartListening failed: %v", err)
	}
	if _, err := s.StartListening(context.Background(), a); !errors.Is(err, ErrAlreadyListening) {
		t.Errorf("expected ErrAlreadyListening, got %v", err)
	}
}

func TestStopListeningCancelsHandle(t *testing.T) {
	tr := newFakeTransport()
	s, _ := newTestSwarm(t, localID, tr)

	a := addr.MustParse("/ip4/0.0.0.0/tcp/0")
	if _, err := s.StartListening(context.Background(), a); err != nil {
		t.Fatalf("StartListening failed: %v", err)
	}

	s.listenersMu.RLock()
	entry := s.listeners[a.String()]
	s.listenersMu.RUnlock()
	handle := entry.handle.(*fakeHandle)

	if err := s.StopListening(a); err != nil {
		t.Fatalf("StopListening failed: %v", err)
	}
	if !handle.cancelled {
		t.Errorf("expected listener handle to be cancelled")
	}
}

func TestStopClearsTablesAndDisconnects(t *testing.T) {
	tr := newFakeTransport()
	s, _ := newTestSwarm(t, localID, tr)

	a := addr.MustParse("/ip4/1.1.1.1/tcp/4001/p2p/" + remoteID)
	s.resolver = fakeResolver{out: []addr.Multiaddr{a}}
	if _, err := s.Connect(context.Background(), a); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	if _, err := s.StartListening(context.Background(), addr.MustParse("/ip4/0.0.0.0/tcp/0")); err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	s.DenyList().Add(addr.MustParse("/ip4/9.9.9.9"))

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if len(s.KnownPeers()) != 0 {
		t.Errorf("expected empty peers after stop")
	}
	s.streamsMu.RLock()
	n := len(s.streams)
	s.streamsMu.RUnlock()
	if n != 0 {
		t.Errorf("expected empty streams after stop, got %d", n)
	}
	s.listenersMu.RLock()
	m := len(s.listeners)
	s.listenersMu.RUnlock()
	if m != 0 {
		t.Errorf("expected empty listeners after stop, got %d", m)
	}
	if s.DenyList().Len() != 0 {
		t.Errorf("expected deny list reset after stop")
	}
}

func TestOperationsRequireStarted(t *testing.T) {
	tr := newFakeTransport()
	reg := transport.NewRegistry()
	reg.Register("tcp", tr)
	s, err := NewSwarm(addr.PeerID(localID), reg)
	if err != nil {
		t.Fatalf("NewSwarm failed: %v", err)
	}

	a := addr.MustParse("/ip4/1.1.1.1/tcp/4001/p2p/" + remoteID)
	if _, err := s.RegisterPeer(a); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed before Start, got %v", err)
	}
}

// fakeResolver returns a fixed candidate list regardless of input.
type fakeResolver struct {
	out []addr.Multiaddr
}

func (f fakeResolver) Resolve(ctx context.Context, a addr.Multiaddr) ([]addr.Multiaddr, error) {
	return f.out, nil
}

func TestConcurrentRegisterPeerIsLinearizable(t *testing.T) {
	s, _ := newTestSwarm(t, localID, newFakeTransport())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a := addr.MustParse("/ip4/1.1.1." + itoa(i) + "/tcp/4001/p2p/" + remoteID)
			_, _ = s.RegisterPeer(a)
		}(i)
	}
	wg.Wait()

	peers := s.KnownPeers()
	if len(peers) != 1 {
		t.Fatalf("expected exactly 1 peer, got %d", len(peers))
	}
	if len(peers[0].Addresses) != 20 {
		t.Errorf("expected 20 distinct addresses, got %d", len(peers[0].Addresses))
	}
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	digits := ""
	for i > 0 {
		digits = string(rune('0'+i%10)) + digits
		i /= 10
	}
	return digits
}

func TestCommitStreamSecondDialLosesAndKeepsFirst(t *testing.T) {
	tr := newFakeTransport()
	s, _ := newTestSwarm(t, localID, tr)

	a1 := addr.MustParse("/ip4/1.1.1.1/tcp/4001/p2p/" + remoteID)
	a2 := addr.MustParse("/ip4/2.2.2.2/tcp/4001/p2p/" + remoteID)
	if _, err := s.RegisterPeer(a1); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	stream1, _ := newFakeConnPair(addr.Multiaddr{}, a1)
	stream2, _ := newFakeConnPair(addr.Multiaddr{}, a2)
	c1 := conn.New(addr.PeerID(localID), addr.PeerID(remoteID), nil, a1, stream1, nil)
	c2 := conn.New(addr.PeerID(localID), addr.PeerID(remoteID), nil, a2, stream2, nil)

	if _, won := s.commitStream(addr.PeerID(remoteID), a1, c1); !won {
		t.Fatalf("first commit should win")
	}
	snap, won := s.commitStream(addr.PeerID(remoteID), a2, c2)
	if won {
		t.Fatalf("second commit for the same peer should lose")
	}
	if snap.ConnectedAddress == nil || !snap.ConnectedAddress.Equal(a1) {
		t.Errorf("expected first dial's address to stay authoritative, got %+v", snap.ConnectedAddress)
	}

	s.streamsMu.RLock()
	stored := s.streams[addr.PeerID(remoteID)]
	n := len(s.streams)
	s.streamsMu.RUnlock()
	if n != 1 || stored != c1 {
		t.Errorf("expected exactly the first stream in the table, got %d entries", n)
	}
}

func TestConnectRespectsDialAttemptBudget(t *testing.T) {
	tr := newFakeTransport()
	reg := transport.NewRegistry()
	reg.Register("tcp", tr)
	cfg := DefaultConfig()
	cfg.MaxDialAttempts = 1
	s, err := NewSwarm(addr.PeerID(localID), reg, WithConfig(cfg))
	if err != nil {
		t.Fatalf("NewSwarm failed: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	a1 := addr.MustParse("/ip4/1.1.1.1/tcp/4001/p2p/" + remoteID)
	a2 := addr.MustParse("/ip4/2.2.2.2/tcp/4001/p2p/" + remoteID)
	tr.failAddr(a1.String(), errors.New("boom1"))
	tr.failAddr(a2.String(), errors.New("boom2"))
	s.resolver = fakeResolver{out: []addr.Multiaddr{a1, a2}}

	_, err = s.Connect(context.Background(), a1)
	var unreachable *UnreachableError
	if !errors.As(err, &unreachable) {
		t.Fatalf("expected *UnreachableError, got %v", err)
	}
	if len(unreachable.Attempts) != 1 {
		t.Errorf("expected the budget to cap attempts at 1, got %d", len(unreachable.Attempts))
	}
}

func TestConnectNoTransportForAnySegment(t *testing.T) {
	tr := newFakeTransport()
	s, _ := newTestSwarm(t, localID, tr) // only "tcp" registered

	a := addr.MustParse("/ip4/1.1.1.1/udp/4001/p2p/" + remoteID)
	s.resolver = fakeResolver{out: []addr.Multiaddr{a}}

	_, err := s.Connect(context.Background(), a)
	var unreachable *UnreachableError
	if !errors.As(err, &unreachable) {
		t.Fatalf("expected *UnreachableError, got %v", err)
	}
	if len(unreachable.Attempts) != 1 || !errors.Is(unreachable.Attempts[0].Err, ErrNoTransport) {
		t.Errorf("expected one ErrNoTransport attempt, got %+v", unreachable.Attempts)
	}
}

func TestStartListeningNoTransport(t *testing.T) {
	tr := newFakeTransport()
	s, _ := newTestSwarm(t, localID, tr)

	_, err := s.StartListening(context.Background(), addr.MustParse("/ip4/0.0.0.0/udp/4001"))
	if !errors.Is(err, ErrNoTransport) {
		t.Fatalf("expected ErrNoTransport, got %v", err)
	}

	// The reserved listener slot must be released on failure.
	s.listenersMu.RLock()
	n := len(s.listeners)
	s.listenersMu.RUnlock()
	if n != 0 {
		t.Errorf("expected no listener entries after failed bind, got %d", n)
	}
}

func TestConnectCancelledContext(t *testing.T) {
	tr := newFakeTransport()
	s, _ := newTestSwarm(t, localID, tr)
	a := addr.MustParse("/ip4/1.1.1.1/tcp/4001/p2p/" + remoteID)
	s.resolver = fakeResolver{out: []addr.Multiaddr{a}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Connect(ctx, a)
	if !errors.Is(err, ErrCancelled) {
		t.Errorf("expected ErrCancelled, got %v", err)
	}
}
