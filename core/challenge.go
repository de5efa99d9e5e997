package core

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spruceid/siwe-go"
)

const (
	// MessageVersion is the only challenge message version understood
	MessageVersion = "1"

	minNonceLength = 8
)

// Challenge is the structured form of the message a wallet signs
type Challenge struct {
	Domain         string
	Address        string // Lowercased address
	Statement      string
	URI            string
	Version        string
	ChainID        int64
	Nonce          string
	IssuedAt       time.Time
	ExpirationTime time.Time
	Resources      []string
}

// Message converts the challenge to its EIP-4361 form
func (c *Challenge) Message() (*siwe.Message, error) {
	options := map[string]interface{}{
		"chainId":        int(c.ChainID),
		"issuedAt":       formatTime(c.IssuedAt),
		"expirationTime": formatTime(c.ExpirationTime),
	}
	if c.Statement != "" {
		options["statement"] = c.Statement
	}
	if len(c.Resources) > 0 {
		resources := make([]url.URL, 0, len(c.Resources))
		for _, r := range c.Resources {
			u, err := url.Parse(r)
			if err != nil {
				return nil, fmt.Errorf("invalid resource %q: %w", r, err)
			}
			resources = append(resources, *u)
		}
		options["resources"] = resources
	}
	return siwe.InitMessage(c.Domain, ChecksumAddress(c.Address), c.URI, c.Nonce, options)
}

// String renders the canonical message text. The same challenge always
// renders to the same bytes. A challenge that cannot be rendered yields "".
func (c *Challenge) String() string {
	msg, err := c.Message()
	if err != nil {
		return ""
	}
	return msg.String()
}

// ExpiredAt reports whether the challenge is no longer acceptable at now
func (c *Challenge) ExpiredAt(now time.Time) bool {
	return !now.Before(c.ExpirationTime)
}

// ChallengeBuilder renders challenges for one relying party
type ChallengeBuilder struct {
	Domain    string        // RFC 3986 authority requesting the signature
	URI       string        // Resource the session is for
	Statement string        // Human-readable assertion, single line
	ChainID   int64         // EIP-155 chain ID
	TTL       time.Duration // Challenge lifetime
	Resources []string
}

// Validate checks the builder's static configuration
func (b ChallengeBuilder) Validate() error {
	switch {
	case b.Domain == "" || strings.ContainsAny(b.Domain, " \n"):
		return errors.New("challenge domain must be a non-empty authority")
	case b.URI == "" || strings.ContainsAny(b.URI, " \n"):
		return errors.New("challenge uri must be non-empty")
	case strings.Contains(b.Statement, "\n"):
		return errors.New("challenge statement must be a single line")
	case b.ChainID <= 0:
		return errors.New("challenge chain id must be positive")
	case b.TTL <= 0:
		return errors.New("challenge ttl must be positive")
	}
	if _, err := url.Parse(b.URI); err != nil {
		return fmt.Errorf("invalid challenge uri: %w", err)
	}
	for _, r := range b.Resources {
		if r == "" || strings.ContainsAny(r, " \n") {
			return fmt.Errorf("invalid challenge resource %q", r)
		}
		if _, err := url.Parse(r); err != nil {
			return fmt.Errorf("invalid challenge resource %q: %w", r, err)
		}
	}
	return nil
}

// Build renders the challenge for address and nonce issued at issuedAt.
// It performs no I/O.
func (b ChallengeBuilder) Build(address, nonce string, issuedAt time.Time) (*Challenge, error) {
	addr, err := ValidateAddress(address)
	if err != nil {
		return nil, err
	}
	if !validNonce(nonce) {
		return nil, fmt.Errorf("nonce must be at least %d alphanumeric characters: %w", minNonceLength, ErrMalformedMessage)
	}

	issuedAt = issuedAt.UTC().Truncate(time.Second)
	var resources []string
	if len(b.Resources) > 0 {
		resources = append(resources, b.Resources...)
	}

	c := &Challenge{
		Domain:         b.Domain,
		Address:        addr,
		Statement:      b.Statement,
		URI:            b.URI,
		Version:        MessageVersion,
		ChainID:        b.ChainID,
		Nonce:          nonce,
		IssuedAt:       issuedAt,
		ExpirationTime: issuedAt.Add(b.TTL),
		Resources:      resources,
	}
	if _, err := c.Message(); err != nil {
		return nil, fmt.Errorf("render challenge: %v: %w", err, ErrMalformedMessage)
	}
	return c, nil
}

// ParseChallenge parses a canonical challenge message. The message must
// re-render to exactly the same text.
func ParseChallenge(message string) (*Challenge, error) {
	msg, err := siwe.ParseMessage(message)
	if err != nil {
		return nil, fmt.Errorf("parse challenge: %v: %w", err, ErrMalformedMessage)
	}
	c, err := fromMessage(msg)
	if err != nil {
		return nil, fmt.Errorf("parse challenge: %v: %w", err, ErrMalformedMessage)
	}
	if c.String() != message {
		return nil, fmt.Errorf("message is not in canonical form: %w", ErrMalformedMessage)
	}
	return c, nil
}

func fromMessage(msg *siwe.Message) (*Challenge, error) {
	addr, err := ValidateAddress(msg.GetAddress().Hex())
	if err != nil {
		return nil, err
	}
	uri := msg.GetURI()

	c := &Challenge{
		Domain:  msg.GetDomain(),
		Address: addr,
		URI:     uri.String(),
		Version: msg.GetVersion(),
		ChainID: int64(msg.GetChainID()),
		Nonce:   msg.GetNonce(),
	}
	if s := msg.GetStatement(); s != nil {
		c.Statement = *s
	}
	if c.Version != MessageVersion {
		return nil, fmt.Errorf("unsupported version %q", c.Version)
	}
	if c.ChainID <= 0 {
		return nil, fmt.Errorf("invalid chain id %d", c.ChainID)
	}
	if !validNonce(c.Nonce) {
		return nil, errors.New("invalid nonce")
	}

	if c.IssuedAt, err = parseTime(msg.GetIssuedAt()); err != nil {
		return nil, fmt.Errorf("invalid issued at: %w", err)
	}
	expiration := msg.GetExpirationTime()
	if expiration == nil {
		return nil, errors.New("missing expiration time")
	}
	if c.ExpirationTime, err = parseTime(*expiration); err != nil {
		return nil, fmt.Errorf("invalid expiration time: %w", err)
	}
	if !c.ExpirationTime.After(c.IssuedAt) {
		return nil, errors.New("expiration time must be after issued at")
	}

	for _, r := range msg.GetResources() {
		c.Resources = append(c.Resources, r.String())
	}
	return c, nil
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func validNonce(nonce string) bool {
	if len(nonce) < minNonceLength {
		return false
	}
	for _, r := range nonce {
		if !('a' <= r && r <= 'z' || 'A' <= r && r <= 'Z' || '0' <= r && r <= '9') {
			return false
		}
	}
	return true
}
