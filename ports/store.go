package ports

import (
	"context"

	"github.com/layer-3/keygate/core"
)

// NonceStore owns the lifecycle of challenge nonces
type NonceStore interface {
	// Issue creates and records a fresh nonce for address
	Issue(ctx context.Context, address string) (core.NonceRecord, error)

	// Lookup finds a nonce by value and reports its current state
	Lookup(ctx context.Context, nonce string) (core.NonceRecord, core.NonceState, error)

	// Consume atomically marks a live nonce as used and returns the state
	// observed before the call. Only core.NonceLive means this call consumed it.
	Consume(ctx context.Context, nonce string) (core.NonceState, error)
}
