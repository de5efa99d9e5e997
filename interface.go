package keygate

import (
	"context"
	"time"
)

// Client represents the public interface for interacting with a keygate server
type Client interface {
	// Challenge requests a message for address to sign
	Challenge(ctx context.Context, address string) (*Challenge, error)

	// Verify submits a signed challenge and returns a session credential
	Verify(ctx context.Context, message, signature string) (*Credential, error)

	// Login runs Challenge and Verify with signer
	Login(ctx context.Context, signer Signer) (*Credential, error)

	// Me returns the address a credential was issued to
	Me(ctx context.Context, credential string) (string, error)
}

// Signer signs challenge messages on behalf of an address
type Signer interface {
	Address() string
	SignMessage(message []byte) (string, error)
}

// Challenge is a message issued by the server, waiting to be signed
type Challenge struct {
	Message        string    `json:"message"`
	Nonce          string    `json:"nonce"`
	ExpirationTime time.Time `json:"expiration_time"`
}

// Credential is a session credential returned by a successful verification
type Credential struct {
	Token     string `json:"credential"`
	Address   string `json:"address"`
	TokenType string `json:"token_type"`
	ExpiresIn int64  `json:"expires_in"`
}
