package otp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"be-auth/pkg/redis"
)

// RedisStore is a Store backed by Redis, for deployments where multiple
// instances must share OTP state. Entries expire via key TTL; the request
// history lives in a sorted set scored by unix nanoseconds.
type RedisStore struct {
	client *redis.Client
	window time.Duration
}

// NewRedisStore creates a Redis-backed store. window bounds the retention of
// the rate-limit history.
func NewRedisStore(client *redis.Client, window time.Duration) *RedisStore {
	return &RedisStore{client: client, window: window}
}

// GetEntry returns the live entry for an email, or (nil, nil) when absent
func (s *RedisStore) GetEntry(ctx context.Context, email string) (*Entry, error) {
	val, err := s.client.Get(ctx, s.client.KeyBuilder.KeyOtpEntry(email))
	if redis.IsNil(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get otp entry: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal([]byte(val), &entry); err != nil {
		return nil, fmt.Errorf("failed to decode otp entry: %w", err)
	}
	return &entry, nil
}

// PutEntry creates or replaces the entry for an email
func (s *RedisStore) PutEntry(ctx context.Context, email string, entry *Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode otp entry: %w", err)
	}

	ttl := time.Until(entry.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Second
	}
	return s.client.Set(ctx, s.client.KeyBuilder.KeyOtpEntry(email), string(data), ttl)
}

// RemoveEntry deletes the entry for an email
func (s *RedisStore) RemoveEntry(ctx context.Context, email string) error {
	return s.client.Delete(ctx, s.client.KeyBuilder.KeyOtpEntry(email))
}

// AppendRequest records a code request timestamp for rate limiting
func (s *RedisStore) AppendRequest(ctx context.Context, email string, at time.Time) error {
	key := s.client.KeyBuilder.KeyOtpHistory(email)
	member := strconv.FormatInt(at.UnixNano(), 10)

	if err := s.client.ZAdd(ctx, key, float64(at.UnixNano()), member); err != nil {
		return err
	}
	// History never needs to outlive the rate-limit window
	return s.client.Expire(ctx, key, s.window)
}

// CountRequestsSince counts request timestamps at or after since, pruning
// older ones as a byproduct
func (s *RedisStore) CountRequestsSince(ctx context.Context, email string, since time.Time) (int, error) {
	key := s.client.KeyBuilder.KeyOtpHistory(email)
	min := strconv.FormatInt(since.UnixNano(), 10)

	if err := s.client.ZRemRangeByScore(ctx, key, "-inf", "("+min); err != nil {
		return 0, err
	}

	n, err := s.client.ZCount(ctx, key, min, "+inf")
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Sweep is a no-op for Redis; key TTLs already bound entry and history lifetime
func (s *RedisStore) Sweep(ctx context.Context, now time.Time, window time.Duration) error {
	return nil
}
