// Package identity derives a node's PeerID: Base58(SHA256(seed)).
// This module has no key-exchange or signing in scope, so the seed is
// random bytes generated once at node startup rather than public key
// material.
package identity

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"github.com/mr-tron/base58"

	"github.com/dep2p/go-swarm/addr"
)

// NewLocalPeerID generates a fresh PeerID for a node identity that
// lives only for the process's lifetime. Nothing is persisted.
func NewLocalPeerID() (addr.PeerID, error) {
	var seed [32]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return "", fmt.Errorf("generate identity seed: %w", err)
	}
	sum := sha256.Sum256(seed[:])
	return addr.PeerID(base58.Encode(sum[:])), nil
}
