// Package policy implements the swarm's allow/deny address evaluator:
// a pure, I/O-free predicate over addr.Multiaddr values built from two
// pattern lists.
package policy

import (
	"sync"

	"github.com/dep2p/go-swarm/addr"
)

// List is an ordered set of Multiaddr patterns matched against a
// candidate address by component-wise prefix, not substring.
type List struct {
	mu       sync.RWMutex
	patterns []addr.Multiaddr
}

// Add inserts pattern into the list. Duplicate patterns (by textual
// form) are not added twice.
func (l *List) Add(pattern addr.Multiaddr) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, p := range l.patterns {
		if p.Equal(pattern) {
			return
		}
	}
	l.patterns = append(l.patterns, pattern)
}

// Remove deletes pattern from the list, if present.
func (l *List) Remove(pattern addr.Multiaddr) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, p := range l.patterns {
		if p.Equal(pattern) {
			l.patterns = append(l.patterns[:i], l.patterns[i+1:]...)
			return
		}
	}
}

// Reset empties the list.
func (l *List) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.patterns = nil
}

// Patterns returns a snapshot copy of the current pattern set.
func (l *List) Patterns() []addr.Multiaddr {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]addr.Multiaddr, len(l.patterns))
	copy(out, l.patterns)
	return out
}

// matches reports whether pattern is a component-wise prefix of, or
// equal to, candidate.
func matches(pattern, candidate addr.Multiaddr) bool {
	pc := pattern.Components()
	cc := candidate.Components()
	if len(pc) > len(cc) {
		return false
	}
	for i, p := range pc {
		c := cc[i]
		if p.Protocol.Code != c.Protocol.Code || p.Value != c.Value {
			return false
		}
	}
	return true
}

// Matches reports whether any pattern in the list is a component-wise
// prefix of, or equal to, candidate.
func (l *List) Matches(candidate addr.Multiaddr) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, p := range l.patterns {
		if matches(p, candidate) {
			return true
		}
	}
	return false
}

// Len reports the number of patterns currently held.
func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.patterns)
}
