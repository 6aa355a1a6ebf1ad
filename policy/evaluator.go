package policy

import "github.com/dep2p/go-swarm/addr"

// Evaluator combines a deny-list and an allow-list into the single
// predicate the swarm consults before registering or dialing any
// address:
//
//	allowed(addr) = deny.allowed(addr) ∧ allow.allowed(addr)
//
// A deny-list is allowed iff no pattern matches. An allow-list is
// allowed iff it is empty or some pattern matches. Evaluation touches
// no I/O and is safe to call from multiple goroutines while another
// goroutine mutates either list through Add/Remove/Reset.
type Evaluator struct {
	Allow List
	Deny  List
}

// Allowed reports whether a passes both lists.
func (e *Evaluator) Allowed(a addr.Multiaddr) bool {
	if e.Deny.Matches(a) {
		return false
	}
	return e.Allow.Len() == 0 || e.Allow.Matches(a)
}

// NotAllowed is the negation of Allowed.
func (e *Evaluator) NotAllowed(a addr.Multiaddr) bool {
	return !e.Allowed(a)
}
