package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	"HTTP_ADDR", "REDIS_URL", "SIWE_DOMAIN", "SIWE_URI", "SIWE_STATEMENT", "SIWE_CHAIN_ID",
	"SIWE_RESOURCES", "CHALLENGE_TTL", "SESSION_TTL", "NONCE_RETENTION", "SWEEP_INTERVAL",
	"JWT_PRIVATE_KEY", "JWT_ISSUER", "EVENTS_TOPIC", "LOG_LEVEL", "LOG_FORMAT",
}

// clearEnv blanks every config key. Viper ignores empty env vars, so
// defaults apply.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configKeys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.HTTPAddr)
	assert.Empty(t, cfg.RedisURL)
	assert.Equal(t, int64(1), cfg.SIWEChainID)
	assert.Equal(t, 10*time.Minute, cfg.ChallengeTTL)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, time.Minute, cfg.NonceRetention)
	assert.Equal(t, "keygate", cfg.JWTIssuer)
	assert.Equal(t, "keygate.login", cfg.EventsTopic)
	assert.Nil(t, cfg.SIWEResourcesList())
}

func TestLoad_EnvVarOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("HTTP_ADDR", ":8081")
	t.Setenv("SIWE_DOMAIN", "example.com")
	t.Setenv("SIWE_URI", "https://example.com/login")
	t.Setenv("SIWE_STATEMENT", "Sign in to Example.")
	t.Setenv("SIWE_CHAIN_ID", "137")
	t.Setenv("SIWE_RESOURCES", "https://example.com/a, ipfs://bafy ,")
	t.Setenv("CHALLENGE_TTL", "90s")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	cfg, err := Load()
	require.NoError(t, err)

	b := cfg.ChallengeBuilder()
	assert.Equal(t, "example.com", b.Domain)
	assert.Equal(t, "https://example.com/login", b.URI)
	assert.Equal(t, "Sign in to Example.", b.Statement)
	assert.Equal(t, int64(137), b.ChainID)
	assert.Equal(t, 90*time.Second, b.TTL)
	assert.Equal(t, []string{"https://example.com/a", "ipfs://bafy"}, b.Resources)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
}

func TestLoad_Invalid(t *testing.T) {
	for key, value := range map[string]string{
		"CHALLENGE_TTL":  "0s",
		"SESSION_TTL":    "soon",
		"SIWE_CHAIN_ID":  "0",
		"SIWE_DOMAIN":    "exa mple.com",
		"SWEEP_INTERVAL": "-1s",
		"LOG_FORMAT":     "xml",
	} {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}
