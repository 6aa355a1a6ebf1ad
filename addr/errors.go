package addr

import "errors"

var (
	// ErrInvalidAddress covers any malformed textual multiaddr.
	ErrInvalidAddress = errors.New("invalid multiaddr")

	// ErrUnknownProtocol is returned for a segment name not in the
	// built-in protocol table.
	ErrUnknownProtocol = errors.New("unknown multiaddr protocol")
)
