package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/layer-3/keygate/core"
	"github.com/layer-3/keygate/ports"
	"github.com/spruceid/siwe-go"
)

// MemoryStore is an in-memory implementation of the NonceStore interface
type MemoryStore struct {
	records map[string]*core.NonceRecord
	mu      sync.Mutex

	ttl       time.Duration
	retention time.Duration
	clock     quartz.Clock
}

var _ ports.NonceStore = (*MemoryStore)(nil)

// NewMemoryStore creates a new in-memory store issuing nonces valid for ttl
func NewMemoryStore(ttl time.Duration, clock quartz.Clock) *MemoryStore {
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &MemoryStore{
		records:   make(map[string]*core.NonceRecord),
		ttl:       ttl,
		retention: DefaultRetention,
		clock:     clock,
	}
}

// WithRetention sets how long records are kept after expiry
func (s *MemoryStore) WithRetention(retention time.Duration) *MemoryStore {
	s.retention = retention
	return s
}

// Issue records a fresh nonce for address
func (s *MemoryStore) Issue(_ context.Context, address string) (core.NonceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for range maxIssueAttempts {
		nonce := siwe.GenerateNonce()
		if _, exists := s.records[nonce]; exists {
			continue
		}

		record := newRecord(nonce, strings.ToLower(address), s.clock.Now(), s.ttl)
		s.records[nonce] = &record
		return record, nil
	}
	return core.NonceRecord{}, fmt.Errorf("failed to issue nonce: %w", errNonceCollision)
}

// Lookup reports the state of a nonce. Expiry is evaluated on read, so a
// record is expired even if no sweep has removed it yet.
func (s *MemoryStore) Lookup(_ context.Context, nonce string) (core.NonceRecord, core.NonceState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[nonce]
	if !ok {
		return core.NonceRecord{}, core.NonceNotFound, nil
	}
	return *record, record.StateAt(s.clock.Now()), nil
}

// Consume marks a live nonce as used
func (s *MemoryStore) Consume(_ context.Context, nonce string) (core.NonceState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[nonce]
	if !ok {
		return core.NonceNotFound, nil
	}
	state := record.StateAt(s.clock.Now())
	if state == core.NonceLive {
		record.Consumed = true
	}
	return state, nil
}

// Sweep removes records that expired more than the retention ago and
// returns how many were removed
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.clock.Now().Add(-s.retention)
	removed := 0
	for nonce, record := range s.records {
		if !cutoff.Before(record.ExpiresAt) {
			delete(s.records, nonce)
			removed++
		}
	}
	return removed
}

// Len returns the number of records held, including expired ones not yet swept
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Run sweeps the store every interval until ctx is done
func (s *MemoryStore) Run(ctx context.Context, interval time.Duration) error {
	w := s.clock.TickerFunc(ctx, interval, func() error {
		s.Sweep()
		return nil
	}, "sweep")
	err := w.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}
