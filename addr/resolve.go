package addr

import "context"

// Resolver turns a Multiaddr that may carry an unresolved DNS segment
// into one or more concrete, dialable addresses. It never changes the
// trailing identity segment, and returns the input unchanged when
// there is nothing to resolve.
//
// The swarm only depends on this interface; DNS resolution itself is
// an external collaborator per the scope of this module. A concrete
// implementation is provided in package resolver for callers that
// want one.
type Resolver interface {
	Resolve(ctx context.Context, a Multiaddr) ([]Multiaddr, error)
}

// NullResolver returns its input unchanged. It is the zero-dependency
// Resolver for callers whose addresses never carry a dns/dns4/dns6
// segment, and is what tests use by default.
type NullResolver struct{}

// Resolve implements Resolver by returning a as the sole result.
func (NullResolver) Resolve(_ context.Context, a Multiaddr) ([]Multiaddr, error) {
	return []Multiaddr{a}, nil
}
