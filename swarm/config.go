package swarm

import (
	"errors"
	"time"

	"github.com/dep2p/go-swarm/addr"
	"github.com/dep2p/go-swarm/transport"
)

// ErrInvalidConfig is returned by Option constructors given a
// malformed Config.
var ErrInvalidConfig = errors.New("swarm: invalid config")

// Config holds the swarm's tunables. Nothing here reads from disk or
// the environment; loading belongs to the caller.
type Config struct {
	// DialTimeout bounds a single transport.Connect attempt.
	DialTimeout time.Duration

	// MaxDialAttempts caps how many resolved candidate addresses one
	// Connect call will try before giving up. Zero means no cap.
	MaxDialAttempts int
}

// DefaultConfig returns the Config used when NewSwarm is given no
// WithConfig option.
func DefaultConfig() *Config {
	return &Config{
		DialTimeout:     15 * time.Second,
		MaxDialAttempts: 8,
	}
}

// Validate reports whether c is usable.
func (c *Config) Validate() error {
	if c.DialTimeout <= 0 {
		return ErrInvalidConfig
	}
	if c.MaxDialAttempts < 0 {
		return ErrInvalidConfig
	}
	return nil
}

// Option configures a Swarm at construction time.
type Option func(*Swarm) error

// WithConfig overrides the default Config.
func WithConfig(config *Config) Option {
	return func(s *Swarm) error {
		if config == nil {
			return ErrInvalidConfig
		}
		if err := config.Validate(); err != nil {
			return err
		}
		s.config = config
		return nil
	}
}

// WithResolver overrides the default addr.NullResolver.
func WithResolver(r addr.Resolver) Option {
	return func(s *Swarm) error {
		if r == nil {
			return ErrInvalidConfig
		}
		s.resolver = r
		return nil
	}
}

// WithRegistry overrides the transport registry. NewSwarm requires
// one via this option or a non-nil registry passed directly, since a
// swarm with no registered transport can register peers but can never
// dial or listen.
func WithRegistry(r *transport.Registry) Option {
	return func(s *Swarm) error {
		if r == nil {
			return ErrInvalidConfig
		}
		s.registry = r
		return nil
	}
}
