package store

import (
	"errors"
	"time"

	"github.com/layer-3/keygate/core"
)

const (
	// NonceLength is the length of nonces generated by siwe.GenerateNonce
	NonceLength = 16

	// DefaultRetention keeps expired records around for diagnostics before removal
	DefaultRetention = time.Minute

	maxIssueAttempts = 3
)

var errNonceCollision = errors.New("nonce collision")

func newRecord(nonce, address string, now time.Time, ttl time.Duration) core.NonceRecord {
	issuedAt := now.UTC().Truncate(time.Second)
	return core.NonceRecord{
		Value:     nonce,
		Address:   address,
		IssuedAt:  issuedAt,
		ExpiresAt: issuedAt.Add(ttl),
	}
}
