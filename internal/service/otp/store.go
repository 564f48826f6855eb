// Package otp implements the one-time-password manager for email login: a
// time-bounded code store plus a sliding-window rate-limit history, keyed by
// normalized email.
package otp

import (
	"context"
	"sync"
	"time"
)

// Entry is an ephemeral OTP record. At most one live entry exists per
// normalized email at any time.
type Entry struct {
	Code      string    `json:"code"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Attempts  int       `json:"attempts"`
}

// Expired reports whether the entry is past its expiry
func (e *Entry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// Store is the storage abstraction behind the OTP manager. The default is an
// in-process concurrent map; a Redis-backed implementation allows sharing
// state between instances. Atomicity of compound verify sequences is the
// manager's responsibility, not the store's.
type Store interface {
	// GetEntry returns the live entry for an email, or (nil, nil) when absent
	GetEntry(ctx context.Context, email string) (*Entry, error)

	// PutEntry creates or replaces the entry for an email
	PutEntry(ctx context.Context, email string, entry *Entry) error

	// RemoveEntry deletes the entry for an email
	RemoveEntry(ctx context.Context, email string) error

	// AppendRequest records a code request timestamp for rate limiting
	AppendRequest(ctx context.Context, email string, at time.Time) error

	// CountRequestsSince counts request timestamps at or after since,
	// pruning older ones as a byproduct
	CountRequestsSince(ctx context.Context, email string, since time.Time) (int, error)

	// Sweep removes expired entries and request history older than window
	Sweep(ctx context.Context, now time.Time, window time.Duration) error
}

// MemoryStore is the default in-process Store implementation, safe for
// concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	history map[string][]time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*Entry),
		history: make(map[string][]time.Time),
	}
}

// GetEntry returns the live entry for an email, or (nil, nil) when absent
func (s *MemoryStore) GetEntry(ctx context.Context, email string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[email]
	if !ok {
		return nil, nil
	}
	cp := *entry
	return &cp, nil
}

// PutEntry creates or replaces the entry for an email
func (s *MemoryStore) PutEntry(ctx context.Context, email string, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *entry
	s.entries[email] = &cp
	return nil
}

// RemoveEntry deletes the entry for an email
func (s *MemoryStore) RemoveEntry(ctx context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, email)
	return nil
}

// AppendRequest records a code request timestamp for rate limiting
func (s *MemoryStore) AppendRequest(ctx context.Context, email string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history[email] = append(s.history[email], at)
	return nil
}

// CountRequestsSince counts request timestamps at or after since, pruning
// older ones as a byproduct
func (s *MemoryStore) CountRequestsSince(ctx context.Context, email string, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.history[email][:0]
	for _, at := range s.history[email] {
		if !at.Before(since) {
			kept = append(kept, at)
		}
	}
	if len(kept) == 0 {
		delete(s.history, email)
		return 0, nil
	}
	s.history[email] = kept
	return len(kept), nil
}

// Sweep removes expired entries and request history older than window
func (s *MemoryStore) Sweep(ctx context.Context, now time.Time, window time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for email, entry := range s.entries {
		if entry.Expired(now) {
			delete(s.entries, email)
		}
	}

	cutoff := now.Add(-window)
	for email, times := range s.history {
		kept := times[:0]
		for _, at := range times {
			if !at.Before(cutoff) {
				kept = append(kept, at)
			}
		}
		if len(kept) == 0 {
			delete(s.history, email)
		} else {
			s.history[email] = kept
		}
	}

	return nil
}
