package swarm

import (
	"errors"
	"fmt"

	"github.com/dep2p/go-swarm/addr"
)

var (
	// ErrMissingIdentity is returned when an address passed to
	// RegisterPeer/Connect lacks a trailing /p2p/<id> segment.
	ErrMissingIdentity = errors.New("swarm: address has no identity segment")

	// ErrSelfRegistration is returned when an address's identity
	// equals the local peer's.
	ErrSelfRegistration = errors.New("swarm: cannot register local peer as a remote peer")

	// ErrPolicyDenied is returned when the policy evaluator rejects
	// an address.
	ErrPolicyDenied = errors.New("swarm: address rejected by policy")

	// ErrNoTransport is returned when no registered transport's name
	// appears among an address's protocol segments.
	ErrNoTransport = errors.New("swarm: no transport registered for any segment of address")

	// ErrAlreadyListening is returned by StartListening when the
	// given address already has a live listener.
	ErrAlreadyListening = errors.New("swarm: already listening on address")

	// ErrNoKnownAddress is returned when resolving a peer's address
	// yields no concrete candidates to dial.
	ErrNoKnownAddress = errors.New("swarm: resolver returned no addresses")

	// ErrCancelled is returned when a caller's cancellation signal
	// fires during a Connect or dial attempt.
	ErrCancelled = errors.New("swarm: operation cancelled")

	// ErrClosed is returned by operations attempted while the Swarm
	// is not in the Started phase.
	ErrClosed = errors.New("swarm: not started")
)

// DialAttempt records one per-address dial failure folded into an
// UnreachableError.
type DialAttempt struct {
	Addr addr.Multiaddr
	Err  error
}

func (a DialAttempt) String() string {
	return fmt.Sprintf("%s: %v", a.Addr, a.Err)
}

// UnreachableError aggregates every per-address dial failure for one
// Connect call. It is returned only when every candidate address has
// been exhausted.
type UnreachableError struct {
	Peer     addr.PeerID
	Attempts []DialAttempt
}

func (e *UnreachableError) Error() string {
	msg := fmt.Sprintf("swarm: peer %s unreachable after %d attempt(s)", e.Peer, len(e.Attempts))
	for _, a := range e.Attempts {
		msg += "; " + a.String()
	}
	return msg
}

// Unwrap exposes every attempt's cause so callers can errors.Is/As
// through to a specific transport failure.
func (e *UnreachableError) Unwrap() []error {
	errs := make([]error, len(e.Attempts))
	for i, a := range e.Attempts {
		errs[i] = a.Err
	}
	return errs
}
