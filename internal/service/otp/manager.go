package otp

import (
	"context"
	"crypto/rand"
	"fmt"
	"hash/fnv"
	"math/big"
	"strings"
	"sync"
	"time"

	"be-auth/pkg/logger"
)

// Default tuning values
const (
	DefaultTTL          = 5 * time.Minute
	DefaultMaxAttempts  = 5
	DefaultRateWindow   = 15 * time.Minute
	DefaultMaxPerWindow = 3

	codeDigits = 6
	codeSpace  = 1000000 // 10^codeDigits
)

// Config tunes the OTP manager. Zero values fall back to the defaults.
type Config struct {
	TTL          time.Duration
	MaxAttempts  int
	RateWindow   time.Duration
	MaxPerWindow int
}

func (c Config) withDefaults() Config {
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.RateWindow <= 0 {
		c.RateWindow = DefaultRateWindow
	}
	if c.MaxPerWindow <= 0 {
		c.MaxPerWindow = DefaultMaxPerWindow
	}
	return c
}

// Manager issues and verifies short-lived numeric codes for email login.
// Every outward-facing operation returns a value rather than an error: store
// failures are logged and treated as refusal. Compound read-modify-write
// sequences run under a per-email critical section so concurrent verification
// attempts cannot bypass the attempt ceiling.
type Manager struct {
	store  Store
	config Config
	logger *logger.Logger
	now    func() time.Time

	// Striped per-email critical sections; bounded regardless of key cardinality
	locks [lockStripes]sync.Mutex
}

const lockStripes = 64

// NewManager creates an OTP manager over the given store
func NewManager(store Store, config Config, log *logger.Logger) *Manager {
	return &Manager{
		store:  store,
		config: config.withDefaults(),
		logger: log,
		now:    time.Now,
	}
}

// IsRateLimited reports whether the email has exhausted its code requests for
// the current window. Counting prunes out-of-window history as a byproduct.
// A store failure counts as limited.
func (m *Manager) IsRateLimited(ctx context.Context, email string) bool {
	email = normalizeEmail(email)

	unlock := m.lockKey(email)
	defer unlock()

	return m.isRateLimitedLocked(ctx, email)
}

// Generate issues a fresh 6-digit code for the email, replacing any prior
// unconsumed code. Returns ok=false without side effects when rate limited.
func (m *Manager) Generate(ctx context.Context, email string) (string, bool) {
	email = normalizeEmail(email)

	unlock := m.lockKey(email)
	defer unlock()

	if m.isRateLimitedLocked(ctx, email) {
		m.logger.WithField("email", maskEmail(email)).Debug("OTP request rate limited")
		return "", false
	}

	code, err := randomCode()
	if err != nil {
		m.logger.WithError(err).Error("Failed to generate OTP code")
		return "", false
	}

	now := m.now()
	entry := &Entry{
		Code:      code,
		Email:     email,
		CreatedAt: now,
		ExpiresAt: now.Add(m.config.TTL),
	}

	if err := m.store.PutEntry(ctx, email, entry); err != nil {
		m.logger.WithError(err).Error("Failed to store OTP entry")
		return "", false
	}
	if err := m.store.AppendRequest(ctx, email, now); err != nil {
		m.logger.WithError(err).Error("Failed to record OTP request")
	}

	m.logger.WithField("email", maskEmail(email)).Debug("OTP code issued")
	return code, true
}

// Verify checks a code against the live entry for the email. Attempts are
// counted before the match check; exhausting them purges the entry regardless
// of the offered code. A matching code consumes the entry (single use).
func (m *Manager) Verify(ctx context.Context, email, code string) bool {
	email = normalizeEmail(email)

	unlock := m.lockKey(email)
	defer unlock()

	entry, err := m.store.GetEntry(ctx, email)
	if err != nil {
		m.logger.WithError(err).Error("Failed to load OTP entry")
		return false
	}
	if entry == nil {
		return false
	}

	if entry.Expired(m.now()) {
		m.removeEntry(ctx, email)
		return false
	}

	entry.Attempts++
	if entry.Attempts > m.config.MaxAttempts {
		m.removeEntry(ctx, email)
		return false
	}

	if entry.Code != code {
		if entry.Attempts >= m.config.MaxAttempts {
			// Last attempt spent on a mismatch; the entry is dead either way
			m.removeEntry(ctx, email)
		} else if err := m.store.PutEntry(ctx, email, entry); err != nil {
			m.logger.WithError(err).Error("Failed to persist OTP attempt count")
		}
		m.logger.WithFields(map[string]interface{}{
			"email":    maskEmail(email),
			"attempts": entry.Attempts,
		}).Debug("OTP code mismatch")
		return false
	}

	m.removeEntry(ctx, email)
	m.logger.WithField("email", maskEmail(email)).Debug("OTP code verified")
	return true
}

// RemainingAttempts returns how many verification attempts are left for the
// email. Expired entries count as zero and are purged as a side effect.
func (m *Manager) RemainingAttempts(ctx context.Context, email string) int {
	email = normalizeEmail(email)

	unlock := m.lockKey(email)
	defer unlock()

	entry, err := m.store.GetEntry(ctx, email)
	if err != nil {
		m.logger.WithError(err).Error("Failed to load OTP entry")
		return 0
	}
	if entry == nil {
		return 0
	}
	if entry.Expired(m.now()) {
		m.removeEntry(ctx, email)
		return 0
	}

	remaining := m.config.MaxAttempts - entry.Attempts
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// CleanupExpired sweeps expired entries and stale rate-limit history. Not
// correctness-critical; lazy expiry checks in Verify and RemainingAttempts
// already hold the invariants.
func (m *Manager) CleanupExpired(ctx context.Context) {
	if err := m.store.Sweep(ctx, m.now(), m.config.RateWindow); err != nil {
		m.logger.WithError(err).Error("OTP sweep failed")
	}
}

// Run executes the periodic cleanup loop until the context is cancelled
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.CleanupExpired(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (m *Manager) isRateLimitedLocked(ctx context.Context, email string) bool {
	since := m.now().Add(-m.config.RateWindow)
	count, err := m.store.CountRequestsSince(ctx, email, since)
	if err != nil {
		m.logger.WithError(err).Error("Failed to count OTP requests")
		return true
	}
	return count >= m.config.MaxPerWindow
}

func (m *Manager) removeEntry(ctx context.Context, email string) {
	if err := m.store.RemoveEntry(ctx, email); err != nil {
		m.logger.WithError(err).Error("Failed to remove OTP entry")
	}
}

// lockKey acquires the per-email critical section and returns its release func
func (m *Manager) lockKey(email string) func() {
	h := fnv.New32a()
	h.Write([]byte(email))
	lock := &m.locks[h.Sum32()%lockStripes]

	lock.Lock()
	return lock.Unlock
}

// randomCode generates a cryptographically-random 6-digit zero-padded code
func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeSpace))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", codeDigits, n.Int64()), nil
}

// normalizeEmail lower-cases and trims an email so all keying is consistent
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// maskEmail redacts the local part of an email for logging
func maskEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if at <= 1 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}
