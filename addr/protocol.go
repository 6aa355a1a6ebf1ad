package addr

// Protocol describes one segment kind a Multiaddr can carry.
//
// The table is intentionally small: it covers exactly the protocols
// named in the wire format (ip4, ip6, tcp, udp, dns variants, ws/wss,
// and the p2p/ipfs identity marker). Anything else fails to parse.
type Protocol struct {
	Name string
	Code int
	// HasValue is false for protocols with no value component (ws, wss).
	HasValue bool
}

// Well-known protocol codes, aligned with the multiformats/multicodec
// table so textual and binary forms agree with the wider ecosystem.
const (
	codeIP4  = 0x0004
	codeTCP  = 0x0006
	codeUDP  = 0x0111
	codeIP6  = 0x0029
	codeDNS  = 0x0035
	codeDNS4 = 0x0036
	codeDNS6 = 0x0037
	codeP2P  = 0x01A5
	codeWS   = 0x01DD
	codeWSS  = 0x01DE
)

var (
	protoIP4  = Protocol{Name: "ip4", Code: codeIP4, HasValue: true}
	protoIP6  = Protocol{Name: "ip6", Code: codeIP6, HasValue: true}
	protoTCP  = Protocol{Name: "tcp", Code: codeTCP, HasValue: true}
	protoUDP  = Protocol{Name: "udp", Code: codeUDP, HasValue: true}
	protoDNS  = Protocol{Name: "dns", Code: codeDNS, HasValue: true}
	protoDNS4 = Protocol{Name: "dns4", Code: codeDNS4, HasValue: true}
	protoDNS6 = Protocol{Name: "dns6", Code: codeDNS6, HasValue: true}
	protoWS   = Protocol{Name: "ws", Code: codeWS, HasValue: false}
	protoWSS  = Protocol{Name: "wss", Code: codeWSS, HasValue: false}
	// protoP2P is the identity marker. "ipfs" is accepted on parse as a
	// legacy alias but always normalized to "p2p" on output.
	protoP2P = Protocol{Name: "p2p", Code: codeP2P, HasValue: true}
)

var byName = map[string]Protocol{
	protoIP4.Name:  protoIP4,
	protoIP6.Name:  protoIP6,
	protoTCP.Name:  protoTCP,
	protoUDP.Name:  protoUDP,
	protoDNS.Name:  protoDNS,
	protoDNS4.Name: protoDNS4,
	protoDNS6.Name: protoDNS6,
	protoWS.Name:   protoWS,
	protoWSS.Name:  protoWSS,
	protoP2P.Name:  protoP2P,
	"ipfs":         protoP2P,
}

var byCode = map[int]Protocol{
	codeIP4:  protoIP4,
	codeIP6:  protoIP6,
	codeTCP:  protoTCP,
	codeUDP:  protoUDP,
	codeDNS:  protoDNS,
	codeDNS4: protoDNS4,
	codeDNS6: protoDNS6,
	codeWS:   protoWS,
	codeWSS:  protoWSS,
	codeP2P:  protoP2P,
}

// ProtocolWithName looks up a protocol by its textual name. "ipfs" is
// accepted as an alias for "p2p".
func ProtocolWithName(name string) (Protocol, bool) {
	p, ok := byName[name]
	return p, ok
}

// ProtocolWithCode looks up a protocol by its binary code.
func ProtocolWithCode(code int) (Protocol, bool) {
	p, ok := byCode[code]
	return p, ok
}

// IsTransportProtocol reports whether the given protocol name is one a
// Transport can be registered under, as opposed to an addressing
// segment (ip4/ip6/dns*) or the identity marker. ip4/ip6/dns segments
// are information the chosen transport consumes, never something a
// transport itself is keyed on.
func IsTransportProtocol(name string) bool {
	switch name {
	case protoTCP.Name, protoUDP.Name, protoWS.Name, protoWSS.Name:
		return true
	default:
		return false
	}
}
