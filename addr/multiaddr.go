// Package addr implements the self-describing multi-address and peer
// model the swarm is built on: an ordered sequence of /protocol/value
// segments terminated, for peer addresses, by a /p2p/<id> identity
// component.
package addr

import (
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/multiformats/go-varint"
)

// Component is one /name/value segment of a Multiaddr.
type Component struct {
	Protocol Protocol
	Value    string
}

// Multiaddr is a parsed, validated, ordered sequence of Components.
// It is a value type: two Multiaddrs are Equal iff their canonical
// textual forms match, and the textual form is the map key everywhere
// an address set is needed.
type Multiaddr struct {
	components []Component
}

// Empty reports whether this Multiaddr carries no components. An
// empty address is never valid; only the zero value is empty.
func (m Multiaddr) Empty() bool {
	return len(m.components) == 0
}

// Parse parses the textual /proto/value/proto/value/... form.
func Parse(s string) (Multiaddr, error) {
	if s == "" || s == "/" {
		return Multiaddr{}, fmt.Errorf("%w: empty address", ErrInvalidAddress)
	}
	if !strings.HasPrefix(s, "/") {
		return Multiaddr{}, fmt.Errorf("%w: must start with '/': %q", ErrInvalidAddress, s)
	}

	parts := strings.Split(s, "/")[1:] // leading "" before the first "/"
	var components []Component

	for i := 0; i < len(parts); {
		name := parts[i]
		if name == "" {
			return Multiaddr{}, fmt.Errorf("%w: empty protocol segment in %q", ErrInvalidAddress, s)
		}
		proto, ok := ProtocolWithName(name)
		if !ok {
			return Multiaddr{}, fmt.Errorf("%w: unknown protocol %q", ErrUnknownProtocol, name)
		}
		i++

		var value string
		if proto.HasValue {
			if i >= len(parts) || parts[i] == "" {
				return Multiaddr{}, fmt.Errorf("%w: %q missing value", ErrInvalidAddress, name)
			}
			value = parts[i]
			i++
		}

		if err := validateValue(proto, value); err != nil {
			return Multiaddr{}, err
		}

		components = append(components, Component{Protocol: proto, Value: value})
	}

	if len(components) == 0 {
		return Multiaddr{}, fmt.Errorf("%w: no segments in %q", ErrInvalidAddress, s)
	}

	return Multiaddr{components: components}, nil
}

// MustParse is Parse that panics on error; reserved for literals in
// tests and constant-ish initialization.
func MustParse(s string) Multiaddr {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

// String renders the canonical textual form. This is also the
// equality/hash key for the type. The legacy "ipfs" alias is always
// rendered as "p2p".
func (m Multiaddr) String() string {
	var b strings.Builder
	for _, c := range m.components {
		b.WriteByte('/')
		b.WriteString(c.Protocol.Name)
		if c.Protocol.HasValue {
			b.WriteByte('/')
			b.WriteString(c.Value)
		}
	}
	return b.String()
}

// Bytes returns a varint-length-prefixed binary encoding, mirroring
// the wire convention multiaddr implementations in the ecosystem use
// (protocol code as an unsigned varint, followed by a varint byte
// count and the raw value bytes).
func (m Multiaddr) Bytes() []byte {
	var out []byte
	for _, c := range m.components {
		out = append(out, varint.ToUvarint(uint64(c.Protocol.Code))...)
		if c.Protocol.HasValue {
			v := []byte(c.Value)
			out = append(out, varint.ToUvarint(uint64(len(v)))...)
			out = append(out, v...)
		}
	}
	return out
}

// Equal compares canonical textual forms.
func (m Multiaddr) Equal(other Multiaddr) bool {
	return m.String() == other.String()
}

// Components returns a copy of the ordered segment list.
func (m Multiaddr) Components() []Component {
	out := make([]Component, len(m.components))
	copy(out, m.components)
	return out
}

// ValueForProtocol returns the value of the first segment matching
// name, or false if none is present.
func (m Multiaddr) ValueForProtocol(name string) (string, bool) {
	for _, c := range m.components {
		if c.Protocol.Name == name {
			return c.Value, true
		}
	}
	return "", false
}

// Append returns a new Multiaddr with extra components appended.
// Multiaddr itself is immutable; this never mutates m.
func (m Multiaddr) Append(extra ...Component) Multiaddr {
	out := make([]Component, 0, len(m.components)+len(extra))
	out = append(out, m.components...)
	out = append(out, extra...)
	return Multiaddr{components: out}
}

// WithoutIdentity returns m with its trailing /p2p/<id> segment (if
// any) removed, along with the PeerID that was removed.
func (m Multiaddr) WithoutIdentity() (Multiaddr, PeerID, bool) {
	if len(m.components) == 0 {
		return m, "", false
	}
	last := m.components[len(m.components)-1]
	if last.Protocol.Code != codeP2P {
		return m, "", false
	}
	return Multiaddr{components: m.components[:len(m.components)-1]}, PeerID(last.Value), true
}

// IdentitySegment extracts the trailing /p2p/<id> component's PeerID,
// if present.
func (m Multiaddr) IdentitySegment() (PeerID, bool) {
	_, id, ok := m.WithoutIdentity()
	return id, ok
}

// WithIdentity returns m with a trailing /p2p/<id> segment appended,
// replacing one if it is already present.
func (m Multiaddr) WithIdentity(id PeerID) Multiaddr {
	base, _, _ := m.WithoutIdentity()
	return base.Append(Component{Protocol: protoP2P, Value: string(id)})
}

// TransportProtocolName scans the segments in order and returns the
// name of the first one a transport registry could be keyed on.
// Addressing segments (ip4/ip6/dns*) and the identity marker are
// skipped.
func (m Multiaddr) TransportProtocolName() (string, bool) {
	for _, c := range m.components {
		if IsTransportProtocol(c.Protocol.Name) {
			return c.Protocol.Name, true
		}
	}
	return "", false
}

func validateValue(p Protocol, value string) error {
	switch p.Code {
	case codeP2P:
		if _, err := base58.Decode(value); err != nil {
			return fmt.Errorf("%w: invalid base58 peer id %q: %v", ErrInvalidAddress, value, err)
		}
	case codeTCP, codeUDP:
		if err := validatePort(value); err != nil {
			return err
		}
	case codeIP4, codeIP6, codeDNS, codeDNS4, codeDNS6:
		if value == "" {
			return fmt.Errorf("%w: empty host", ErrInvalidAddress)
		}
	}
	return nil
}

func validatePort(s string) error {
	if s == "" {
		return fmt.Errorf("%w: empty port", ErrInvalidAddress)
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return fmt.Errorf("%w: invalid port %q", ErrInvalidAddress, s)
		}
	}
	return nil
}
