// Package config loads and validates keygate config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/layer-3/keygate/core"
	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :9000).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// RedisURL selects the Redis nonce store and event stream; empty keeps everything in memory.
	RedisURL string `mapstructure:"REDIS_URL"`

	// SIWEDomain is the authority that requests the signature (e.g. example.com).
	SIWEDomain string `mapstructure:"SIWE_DOMAIN"`
	// SIWEURI is the resource the session is for.
	SIWEURI string `mapstructure:"SIWE_URI"`
	// SIWEStatement is the optional single-line statement shown in the wallet.
	SIWEStatement string `mapstructure:"SIWE_STATEMENT"`
	// SIWEChainID is the EIP-155 chain the address lives on.
	SIWEChainID int64 `mapstructure:"SIWE_CHAIN_ID"`
	// SIWEResources is a comma-separated list of resource URIs.
	SIWEResources string `mapstructure:"SIWE_RESOURCES"`

	// ChallengeTTL is how long an issued challenge stays acceptable.
	ChallengeTTL time.Duration `mapstructure:"CHALLENGE_TTL"`
	// SessionTTL is the lifetime of issued credentials.
	SessionTTL time.Duration `mapstructure:"SESSION_TTL"`
	// NonceRetention is how long nonce records are kept after expiry.
	NonceRetention time.Duration `mapstructure:"NONCE_RETENTION"`
	// SweepInterval is how often the memory store drops retired nonces.
	SweepInterval time.Duration `mapstructure:"SWEEP_INTERVAL"`

	// JWTPrivateKey is the PEM-encoded P-256 private key or a path to it; empty generates an ephemeral key.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTIssuer is the iss claim of issued credentials.
	JWTIssuer string `mapstructure:"JWT_ISSUER"`

	// EventsTopic is the topic login events are published to.
	EventsTopic string `mapstructure:"EVENTS_TOPIC"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Env vars override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore missing file

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":9000")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("SIWE_DOMAIN", "localhost:9000")
	v.SetDefault("SIWE_URI", "http://localhost:9000")
	v.SetDefault("SIWE_STATEMENT", "")
	v.SetDefault("SIWE_CHAIN_ID", 1)
	v.SetDefault("SIWE_RESOURCES", "")
	v.SetDefault("CHALLENGE_TTL", "10m")
	v.SetDefault("SESSION_TTL", "24h")
	v.SetDefault("NONCE_RETENTION", "1m")
	v.SetDefault("SWEEP_INTERVAL", "1m")
	v.SetDefault("JWT_PRIVATE_KEY", "")
	v.SetDefault("JWT_ISSUER", "keygate")
	v.SetDefault("EVENTS_TOPIC", "keygate.login")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPAddr == "" {
		return errors.New("config: HTTP_ADDR must be set")
	}
	if c.SessionTTL <= 0 {
		return errors.New("config: SESSION_TTL must be positive")
	}
	if c.NonceRetention < 0 {
		return errors.New("config: NONCE_RETENTION must not be negative")
	}
	if c.SweepInterval <= 0 {
		return errors.New("config: SWEEP_INTERVAL must be positive")
	}
	if c.JWTIssuer == "" {
		return errors.New("config: JWT_ISSUER must be set")
	}
	if c.EventsTopic == "" {
		return errors.New("config: EVENTS_TOPIC must be set")
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("config: LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	if err := c.ChallengeBuilder().Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// ChallengeBuilder returns the builder for the configured relying party.
func (c *Config) ChallengeBuilder() core.ChallengeBuilder {
	return core.ChallengeBuilder{
		Domain:    c.SIWEDomain,
		URI:       c.SIWEURI,
		Statement: c.SIWEStatement,
		ChainID:   c.SIWEChainID,
		TTL:       c.ChallengeTTL,
		Resources: c.SIWEResourcesList(),
	}
}

// SIWEResourcesList returns resource URIs from the comma-separated config.
func (c *Config) SIWEResourcesList() []string {
	if c == nil || c.SIWEResources == "" {
		return nil
	}
	parts := strings.Split(c.SIWEResources, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
