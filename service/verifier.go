package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/coder/quartz"
	"github.com/layer-3/keygate/core"
	"github.com/layer-3/keygate/internal/logging"
	"github.com/layer-3/keygate/ports"
)

// Verifier checks signed challenges and consumes their nonces
type Verifier struct {
	builder   core.ChallengeBuilder
	store     ports.NonceStore
	recoverer ports.SignatureRecoverer
	clock     quartz.Clock
	logger    *slog.Logger
}

// NewVerifier creates a verifier accepting challenges rendered by builder
func NewVerifier(builder core.ChallengeBuilder, store ports.NonceStore, recoverer ports.SignatureRecoverer, clock quartz.Clock, logger *slog.Logger) *Verifier {
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &Verifier{
		builder:   builder,
		store:     store,
		recoverer: recoverer,
		clock:     clock,
		logger:    logging.DefaultIfNil(logger),
	}
}

// Verify checks that signature over message was produced by the address in
// the message and consumes the message's nonce. claimedAddress is optional.
func (v *Verifier) Verify(ctx context.Context, message, signature, claimedAddress string) (*core.VerifiedIdentity, error) {
	challenge, err := core.ParseChallenge(message)
	if err != nil {
		return nil, err
	}
	if challenge.Domain != v.builder.Domain {
		return nil, fmt.Errorf("challenge issued for domain %q: %w", challenge.Domain, core.ErrMalformedMessage)
	}

	// Stateless expiry check before any store access.
	if challenge.ExpiredAt(v.clock.Now()) {
		return nil, fmt.Errorf("challenge expired at %s: %w", challenge.ExpirationTime, core.ErrExpiredChallenge)
	}

	signer, err := v.recoverer.RecoverAddress([]byte(message), signature)
	if err != nil {
		return nil, err
	}
	if !core.SameAddress(signer, challenge.Address) {
		return nil, fmt.Errorf("recovered %s: %w", signer, core.ErrSignatureMismatch)
	}
	if claimedAddress != "" && !core.SameAddress(claimedAddress, challenge.Address) {
		return nil, fmt.Errorf("claimed %s: %w", claimedAddress, core.ErrSignatureMismatch)
	}

	record, state, err := v.store.Lookup(ctx, challenge.Nonce)
	if err != nil {
		return nil, fmt.Errorf("failed to look up nonce: %v: %w", err, core.ErrInternalFault)
	}
	if err := v.checkState(challenge, state); err != nil {
		return nil, err
	}
	if !core.SameAddress(record.Address, challenge.Address) {
		v.logger.Warn("nonce presented for a different address",
			slog.String("nonce_address", record.Address),
			slog.String("message_address", challenge.Address))
		return nil, fmt.Errorf("nonce bound to another address: %w", core.ErrInvalidNonce)
	}

	// The record is authoritative: every field of the signed message must
	// match the challenge this service rendered for the nonce.
	expected, err := v.builder.Build(record.Address, record.Value, record.IssuedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild challenge: %v: %w", err, core.ErrInternalFault)
	}
	expected.ExpirationTime = record.ExpiresAt.UTC()
	if expected.String() != message {
		v.logger.Warn("signed message differs from issued challenge", slog.String("address", challenge.Address))
		return nil, fmt.Errorf("message does not match the issued challenge: %w", core.ErrMalformedMessage)
	}

	state, err = v.store.Consume(ctx, challenge.Nonce)
	if err != nil {
		return nil, fmt.Errorf("failed to consume nonce: %v: %w", err, core.ErrInternalFault)
	}
	if err := v.checkState(challenge, state); err != nil {
		return nil, err
	}

	return &core.VerifiedIdentity{
		Address:  record.Address,
		IssuedAt: record.IssuedAt,
	}, nil
}

func (v *Verifier) checkState(challenge *core.Challenge, state core.NonceState) error {
	switch state {
	case core.NonceLive:
		return nil
	case core.NonceExpired:
		return fmt.Errorf("nonce expired: %w", core.ErrExpiredChallenge)
	case core.NonceConsumed:
		v.logger.Info("replayed nonce rejected", slog.String("address", challenge.Address))
		return fmt.Errorf("nonce already consumed: %w", core.ErrInvalidNonce)
	default:
		v.logger.Info("unknown nonce rejected", slog.String("address", challenge.Address))
		return fmt.Errorf("nonce not found: %w", core.ErrInvalidNonce)
	}
}
