package keygate

import (
	"crypto/ecdsa"

	"github.com/layer-3/keygate/adapters/signature"
)

// KeySigner signs challenges with a local secp256k1 key
type KeySigner struct {
	key *ecdsa.PrivateKey
}

var _ Signer = (*KeySigner)(nil)

// NewKeySigner creates a signer for key
func NewKeySigner(key *ecdsa.PrivateKey) *KeySigner {
	return &KeySigner{key: key}
}

// Address returns the lowercased address of the key
func (s *KeySigner) Address() string {
	return signature.Address(s.key)
}

// SignMessage produces a personal_sign signature over message
func (s *KeySigner) SignMessage(message []byte) (string, error) {
	return signature.Sign(s.key, message)
}
