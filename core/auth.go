package core

import "time"

// NonceState is the outcome of looking up a nonce in a NonceStore
type NonceState int

const (
	NonceNotFound NonceState = iota
	NonceLive
	NonceExpired
	NonceConsumed
)

func (s NonceState) String() string {
	switch s {
	case NonceLive:
		return "live"
	case NonceExpired:
		return "expired"
	case NonceConsumed:
		return "consumed"
	default:
		return "not_found"
	}
}

// NonceRecord is a single-use challenge nonce issued for an address
type NonceRecord struct {
	Value     string    // Random nonce value, the only lookup key
	Address   string    // Lowercased address the nonce was issued for
	IssuedAt  time.Time // When the nonce was created
	ExpiresAt time.Time // When the nonce stops being accepted
	Consumed  bool      // Set once by a successful verification
}

// StateAt derives the record's state at the given moment.
// A consumed record stays consumed after it expires.
func (r NonceRecord) StateAt(now time.Time) NonceState {
	switch {
	case r.Consumed:
		return NonceConsumed
	case !now.Before(r.ExpiresAt):
		return NonceExpired
	default:
		return NonceLive
	}
}

// VerifiedIdentity is the result of a successful signature verification
type VerifiedIdentity struct {
	Address  string    // Lowercased address that signed the challenge
	IssuedAt time.Time // Issuance time of the consumed challenge
}

// Session represents an authenticated session carried by a credential
type Session struct {
	ID        string    // Unique session identifier (credential jti)
	Address   string    // Ethereum address of the user
	IssuedAt  time.Time // When the credential was minted
	ExpiresAt time.Time // When the credential stops being accepted
}

// LoginEvent is published after a credential has been issued
type LoginEvent struct {
	Address   string    `json:"address"`
	SessionID string    `json:"session_id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
