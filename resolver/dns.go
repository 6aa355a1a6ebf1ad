// Package resolver implements the addr.Resolver contract: expanding
// dns/dns4/dns6 segments into concrete ip4/ip6 addresses via A/AAAA
// queries against a configured upstream nameserver.
package resolver

import (
	"context"
	"fmt"
	"time"

	"github.com/miekg/dns"

	swarmaddr "github.com/dep2p/go-swarm/addr"
)

// DefaultTimeout bounds a single upstream DNS query.
const DefaultTimeout = 5 * time.Second

// DNSResolver expands dns/dns4/dns6 segments via A/AAAA queries
// against a configured upstream nameserver.
type DNSResolver struct {
	// Nameserver is host:port of the upstream resolver, e.g.
	// "8.8.8.8:53".
	Nameserver string
	// Timeout bounds each query; zero uses DefaultTimeout.
	Timeout time.Duration
}

// NewDNSResolver returns a resolver querying nameserver (host:port).
func NewDNSResolver(nameserver string) *DNSResolver {
	return &DNSResolver{Nameserver: nameserver, Timeout: DefaultTimeout}
}

var _ swarmaddr.Resolver = (*DNSResolver)(nil)

// Resolve expands the first dns/dns4/dns6 segment of a into one
// concrete ip4/ip6 address per returned record, preserving every
// other segment including the trailing identity, and returns
// []Multiaddr{a} unchanged if a carries no DNS segment.
func (r *DNSResolver) Resolve(ctx context.Context, a swarmaddr.Multiaddr) ([]swarmaddr.Multiaddr, error) {
	components := a.Components()

	idx := -1
	for i, c := range components {
		switch c.Protocol.Name {
		case "dns", "dns4", "dns6":
			idx = i
		}
		if idx >= 0 {
			break
		}
	}
	if idx < 0 {
		return []swarmaddr.Multiaddr{a}, nil
	}

	host := components[idx].Value
	wantV4 := components[idx].Protocol.Name != "dns6"
	wantV6 := components[idx].Protocol.Name != "dns4"

	type record struct {
		ip    string
		proto string
	}
	var records []record
	if wantV4 {
		a4, err := r.lookup(ctx, host, dns.TypeA)
		if err != nil && !wantV6 {
			return nil, err
		}
		for _, ip := range a4 {
			records = append(records, record{ip: ip, proto: "ip4"})
		}
	}
	if wantV6 {
		a6, err := r.lookup(ctx, host, dns.TypeAAAA)
		if err != nil && len(records) == 0 {
			return nil, err
		}
		for _, ip := range a6 {
			records = append(records, record{ip: ip, proto: "ip6"})
		}
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("dns resolve %s: no records found", host)
	}

	out := make([]swarmaddr.Multiaddr, 0, len(records))
	for _, rec := range records {
		rebuilt := make([]swarmaddr.Component, 0, len(components))
		rebuilt = append(rebuilt, components[:idx]...)
		p, _ := swarmaddr.ProtocolWithName(rec.proto)
		rebuilt = append(rebuilt, swarmaddr.Component{Protocol: p, Value: rec.ip})
		rebuilt = append(rebuilt, components[idx+1:]...)

		ma, err := swarmaddr.Parse(render(rebuilt))
		if err != nil {
			return nil, err
		}
		out = append(out, ma)
	}
	return out, nil
}

func render(components []swarmaddr.Component) string {
	s := ""
	for _, c := range components {
		s += "/" + c.Protocol.Name
		if c.Protocol.HasValue {
			s += "/" + c.Value
		}
	}
	return s
}

func (r *DNSResolver) lookup(ctx context.Context, host string, qtype uint16) ([]string, error) {
	timeout := r.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(host), qtype)
	m.RecursionDesired = true

	c := new(dns.Client)
	c.Timeout = timeout

	var in *dns.Msg
	var err error
	done := make(chan struct{})
	go func() {
		in, _, err = c.Exchange(m, r.Nameserver)
		close(done)
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-done:
	}
	if err != nil {
		return nil, fmt.Errorf("dns query %s %s: %w", host, dns.TypeToString[qtype], err)
	}

	var out []string
	for _, rr := range in.Answer {
		switch rec := rr.(type) {
		case *dns.A:
			out = append(out, rec.A.String())
		case *dns.AAAA:
			out = append(out, rec.AAAA.String())
		}
	}
	return out, nil
}
