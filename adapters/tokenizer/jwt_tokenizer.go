package tokenizer

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"time"

	"github.com/coder/quartz"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/layer-3/keygate/core"
	"github.com/layer-3/keygate/ports"
)

const AudienceSession = "session:access"

// DefaultSessionTTL is how long an issued credential stays valid
const DefaultSessionTTL = 24 * time.Hour

// JWTTokenizer implements the Tokenizer interface using ES256 JWTs
type JWTTokenizer struct {
	signKey *ecdsa.PrivateKey
	issuer  string
	ttl     time.Duration
	clock   quartz.Clock
}

var _ ports.Tokenizer = (*JWTTokenizer)(nil)

// NewJWTTokenizer creates a new JWT tokenizer
func NewJWTTokenizer(signKey *ecdsa.PrivateKey, issuer string, ttl time.Duration, clock quartz.Clock) *JWTTokenizer {
	if clock == nil {
		clock = quartz.NewReal()
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &JWTTokenizer{
		signKey: signKey,
		issuer:  issuer,
		ttl:     ttl,
		clock:   clock,
	}
}

// Issue mints a session credential for address
func (j *JWTTokenizer) Issue(address string) (string, *core.Session, error) {
	now := j.clock.Now().UTC().Truncate(time.Second)
	session := &core.Session{
		ID:        uuid.New().String(),
		Address:   address,
		IssuedAt:  now,
		ExpiresAt: now.Add(j.ttl),
	}

	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   session.Address,
			Issuer:    j.issuer,
			ID:        session.ID,
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(session.IssuedAt),
			Audience:  jwt.ClaimStrings{AudienceSession},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)

	signedToken, err := token.SignedString(j.signKey)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign credential: %w", err)
	}

	return signedToken, session, nil
}

// Decode parses and validates a session credential
func (j *JWTTokenizer) Decode(tokenStr string) (*core.Session, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		// Validate the signing method
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return &j.signKey.PublicKey, nil
	},
		jwt.WithAudience(AudienceSession),
		jwt.WithIssuer(j.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return j.clock.Now() }),
	)
	if err != nil {
		return nil, classify(err)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, core.ErrCredentialMalformed
	}
	if _, err := core.ValidateAddress(claims.Subject); err != nil {
		return nil, fmt.Errorf("invalid subject: %w", core.ErrCredentialMalformed)
	}

	session := &core.Session{
		ID:        claims.ID,
		Address:   claims.Subject,
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
	}
	if claims.IssuedAt != nil {
		session.IssuedAt = claims.IssuedAt.Time.UTC()
	}

	return session, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%v: %w", err, core.ErrCredentialExpired)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%v: %w", err, core.ErrCredentialSignatureInvalid)
	default:
		return fmt.Errorf("%v: %w", err, core.ErrCredentialMalformed)
	}
}
