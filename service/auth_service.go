package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/coder/quartz"
	"github.com/layer-3/keygate/core"
	"github.com/layer-3/keygate/internal/logging"
	"github.com/layer-3/keygate/ports"
	"github.com/prometheus/client_golang/prometheus"
)

// AuthService handles authentication business logic
type AuthService struct {
	builder   core.ChallengeBuilder
	store     ports.NonceStore
	verifier  *Verifier
	tokenizer ports.Tokenizer
	eventPub  ports.EventPublisher

	clock   quartz.Clock
	logger  *slog.Logger
	metrics *metrics
}

// Option configures an AuthService
type Option func(*options)

type options struct {
	clock    quartz.Clock
	logger   *slog.Logger
	registry prometheus.Registerer
}

// WithClock sets the clock used for challenge issuance and expiry
func WithClock(clock quartz.Clock) Option {
	return func(o *options) { o.clock = clock }
}

// WithLogger sets the service logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics registers the service metrics with reg
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) { o.registry = reg }
}

// NewAuthService creates a new authentication service
func NewAuthService(
	builder core.ChallengeBuilder,
	store ports.NonceStore,
	recoverer ports.SignatureRecoverer,
	tokenizer ports.Tokenizer,
	eventPub ports.EventPublisher,
	opts ...Option,
) *AuthService {
	o := options{
		clock:  quartz.NewReal(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	logger := logging.Child(o.logger, "auth")

	return &AuthService{
		builder:   builder,
		store:     store,
		verifier:  NewVerifier(builder, store, recoverer, o.clock, logger),
		tokenizer: tokenizer,
		eventPub:  eventPub,
		clock:     o.clock,
		logger:    logger,
		metrics:   newMetrics(o.registry),
	}
}

// CreateChallenge issues a nonce for address and renders the message to sign
func (s *AuthService) CreateChallenge(ctx context.Context, address string) (*core.Challenge, error) {
	challenge, err := s.createChallenge(ctx, address)
	s.metrics.challenges.WithLabelValues(outcome(core.Kind(err))).Inc()
	return challenge, err
}

func (s *AuthService) createChallenge(ctx context.Context, address string) (*core.Challenge, error) {
	// Reject before allocating a nonce that could never verify.
	addr, err := core.ValidateAddress(address)
	if err != nil {
		return nil, err
	}

	record, err := s.store.Issue(ctx, addr)
	if err != nil {
		s.logger.Error("failed to issue nonce", logging.Error(err))
		return nil, fmt.Errorf("failed to issue nonce: %v: %w", err, core.ErrInternalFault)
	}

	challenge, err := s.builder.Build(record.Address, record.Value, record.IssuedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to build challenge: %v: %w", err, core.ErrInternalFault)
	}

	s.logger.Debug("challenge issued",
		slog.String("address", addr),
		slog.Time("expires_at", challenge.ExpirationTime))
	return challenge, nil
}

// Verify checks a signed challenge and, on success, issues a session credential
func (s *AuthService) Verify(ctx context.Context, message, signature, claimedAddress string) (string, *core.Session, error) {
	token, session, err := s.verify(ctx, message, signature, claimedAddress)
	kind := core.Kind(err)
	s.metrics.verifications.WithLabelValues(outcome(kind)).Inc()
	if err != nil {
		if kind == core.KindInternalFault {
			s.logger.Error("verification failed", logging.Error(err))
		} else {
			s.logger.Info("verification rejected", slog.String("kind", kind), logging.Error(err))
		}
	}
	return token, session, err
}

func (s *AuthService) verify(ctx context.Context, message, signature, claimedAddress string) (string, *core.Session, error) {
	identity, err := s.verifier.Verify(ctx, message, signature, claimedAddress)
	if err != nil {
		return "", nil, err
	}

	token, session, err := s.tokenizer.Issue(identity.Address)
	if err != nil {
		return "", nil, fmt.Errorf("failed to issue credential: %v: %w", err, core.ErrInternalFault)
	}

	// The credential is already minted; a lost event must not fail the login.
	event := core.LoginEvent{
		Address:   session.Address,
		SessionID: session.ID,
		IssuedAt:  session.IssuedAt,
		ExpiresAt: session.ExpiresAt,
	}
	if s.eventPub != nil {
		if err := s.eventPub.PublishLogin(ctx, event); err != nil {
			s.logger.Warn("failed to publish login event", logging.Error(err))
		}
	}

	s.logger.Info("session issued",
		slog.String("address", session.Address),
		slog.String("session_id", session.ID))
	return token, session, nil
}

// Authenticate decodes a credential presented to a protected endpoint
func (s *AuthService) Authenticate(_ context.Context, credential string) (*core.Session, error) {
	session, err := s.tokenizer.Decode(credential)
	s.metrics.decodes.WithLabelValues(outcome(core.Kind(err))).Inc()
	if err != nil {
		return nil, err
	}
	return session, nil
}
