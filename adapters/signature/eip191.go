package signature

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/keygate/core"
	"github.com/layer-3/keygate/ports"
)

// EIP191Recoverer recovers signers of personal_sign messages
type EIP191Recoverer struct{}

var _ ports.SignatureRecoverer = EIP191Recoverer{}

// NewEIP191Recoverer creates a new EIP-191 signature recoverer
func NewEIP191Recoverer() EIP191Recoverer {
	return EIP191Recoverer{}
}

// RecoverAddress returns the lowercased address that produced signature over
// the EIP-191 prefixed hash of message. Both 0/1 and 27/28 recovery ids are accepted.
func (EIP191Recoverer) RecoverAddress(message []byte, signature string) (string, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return "", fmt.Errorf("failed to decode signature: %w", core.ErrSignatureMismatch)
	}
	if len(sig) != crypto.SignatureLength {
		return "", fmt.Errorf("signature must be %d bytes: %w", crypto.SignatureLength, core.ErrSignatureMismatch)
	}

	switch v := sig[crypto.RecoveryIDOffset]; v {
	case 0, 1:
	case 27, 28:
		sig[crypto.RecoveryIDOffset] = v - 27
	default:
		return "", fmt.Errorf("invalid recovery id %d: %w", v, core.ErrSignatureMismatch)
	}

	pub, err := crypto.SigToPub(accounts.TextHash(message), sig)
	if err != nil {
		return "", fmt.Errorf("failed to recover public key: %w", core.ErrSignatureMismatch)
	}
	return strings.ToLower(crypto.PubkeyToAddress(*pub).Hex()), nil
}

// Sign produces a personal_sign signature over message the way wallets do,
// with a 27/28 recovery id
func Sign(key *ecdsa.PrivateKey, message []byte) (string, error) {
	sig, err := crypto.Sign(accounts.TextHash(message), key)
	if err != nil {
		return "", fmt.Errorf("failed to sign message: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig), nil
}

// Address returns the lowercased address of key
func Address(key *ecdsa.PrivateKey) string {
	return strings.ToLower(crypto.PubkeyToAddress(key.PublicKey).Hex())
}
