package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/coder/quartz"
	"github.com/layer-3/keygate/core"
	"github.com/layer-3/keygate/ports"
	"github.com/redis/go-redis/v9"
	"github.com/spruceid/siwe-go"
)

// issueScript creates the nonce hash only if the key is free.
// KEYS[1] nonce key; ARGV: address, issued_at ms, expires_at ms, key ttl ms.
var issueScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('HSET', KEYS[1], 'address', ARGV[1], 'issued_at', ARGV[2], 'expires_at', ARGV[3], 'consumed', '0')
redis.call('PEXPIRE', KEYS[1], ARGV[4])
return 1
`)

// consumeScript is the atomic check-and-set on the consumed flag.
// KEYS[1] nonce key; ARGV[1] now ms. Returns the observed core.NonceState.
var consumeScript = redis.NewScript(`
local v = redis.call('HMGET', KEYS[1], 'consumed', 'expires_at')
if not v[1] then
	return 0
end
if v[1] == '1' then
	return 3
end
if tonumber(v[2]) <= tonumber(ARGV[1]) then
	return 2
end
redis.call('HSET', KEYS[1], 'consumed', '1')
return 1
`)

// RedisStore is a Redis implementation of the NonceStore interface
type RedisStore struct {
	client    redis.UniversalClient
	prefix    string
	ttl       time.Duration
	retention time.Duration
	clock     quartz.Clock
}

var _ ports.NonceStore = (*RedisStore)(nil)

// NewRedisStore creates a new Redis store issuing nonces valid for ttl
func NewRedisStore(client redis.UniversalClient, ttl time.Duration, clock quartz.Clock) *RedisStore {
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &RedisStore{
		client:    client,
		prefix:    "keygate:nonce:",
		ttl:       ttl,
		retention: DefaultRetention,
		clock:     clock,
	}
}

// WithRetention sets how long records outlive their expiry before Redis drops them
func (s *RedisStore) WithRetention(retention time.Duration) *RedisStore {
	s.retention = retention
	return s
}

// Issue records a fresh nonce for address
func (s *RedisStore) Issue(ctx context.Context, address string) (core.NonceRecord, error) {
	for range maxIssueAttempts {
		nonce := siwe.GenerateNonce()

		record := newRecord(nonce, strings.ToLower(address), s.clock.Now(), s.ttl)
		created, err := issueScript.Run(ctx, s.client, []string{s.key(nonce)},
			record.Address,
			record.IssuedAt.UnixMilli(),
			record.ExpiresAt.UnixMilli(),
			(s.ttl + s.retention).Milliseconds(),
		).Int()
		if err != nil {
			return core.NonceRecord{}, fmt.Errorf("failed to store nonce: %w", err)
		}
		if created == 1 {
			return record, nil
		}
	}
	return core.NonceRecord{}, fmt.Errorf("failed to issue nonce: %w", errNonceCollision)
}

// Lookup reports the state of a nonce
func (s *RedisStore) Lookup(ctx context.Context, nonce string) (core.NonceRecord, core.NonceState, error) {
	fields, err := s.client.HGetAll(ctx, s.key(nonce)).Result()
	if err != nil {
		return core.NonceRecord{}, core.NonceNotFound, fmt.Errorf("failed to look up nonce: %w", err)
	}
	if len(fields) == 0 {
		return core.NonceRecord{}, core.NonceNotFound, nil
	}

	issuedAt, err := strconv.ParseInt(fields["issued_at"], 10, 64)
	if err != nil {
		return core.NonceRecord{}, core.NonceNotFound, fmt.Errorf("corrupt nonce record: %w", err)
	}
	expiresAt, err := strconv.ParseInt(fields["expires_at"], 10, 64)
	if err != nil {
		return core.NonceRecord{}, core.NonceNotFound, fmt.Errorf("corrupt nonce record: %w", err)
	}

	record := core.NonceRecord{
		Value:     nonce,
		Address:   fields["address"],
		IssuedAt:  time.UnixMilli(issuedAt).UTC(),
		ExpiresAt: time.UnixMilli(expiresAt).UTC(),
		Consumed:  fields["consumed"] == "1",
	}
	return record, record.StateAt(s.clock.Now()), nil
}

// Consume marks a live nonce as used
func (s *RedisStore) Consume(ctx context.Context, nonce string) (core.NonceState, error) {
	state, err := consumeScript.Run(ctx, s.client, []string{s.key(nonce)}, s.clock.Now().UnixMilli()).Int()
	if err != nil {
		return core.NonceNotFound, fmt.Errorf("failed to consume nonce: %w", err)
	}
	return core.NonceState(state), nil
}

func (s *RedisStore) key(nonce string) string {
	return s.prefix + nonce
}
