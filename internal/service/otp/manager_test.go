package otp

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"be-auth/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("error", "development")
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	return log
}

func testManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(NewMemoryStore(), Config{}, testLogger(t))
}

func TestManager_GenerateProducesSixDigitCodes(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	code, ok := m.Generate(ctx, "user@example.com")
	if !ok {
		t.Fatal("Generate() ok = false, want true")
	}
	if !regexp.MustCompile(`^\d{6}$`).MatchString(code) {
		t.Errorf("Generate() code = %q, want exactly 6 digits", code)
	}
}

func TestManager_SingleUse(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	code, ok := m.Generate(ctx, "user@example.com")
	if !ok {
		t.Fatal("Generate() ok = false, want true")
	}

	if !m.Verify(ctx, "user@example.com", code) {
		t.Error("first Verify() = false, want true")
	}
	if m.Verify(ctx, "user@example.com", code) {
		t.Error("second Verify() = true, want false (code is single use)")
	}
}

func TestManager_EmailNormalization(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	code, ok := m.Generate(ctx, "  User@Example.COM ")
	if !ok {
		t.Fatal("Generate() ok = false, want true")
	}

	if !m.Verify(ctx, "user@example.com", code) {
		t.Error("Verify() with normalized email = false, want true")
	}
}

func TestManager_Expiry(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	code, ok := m.Generate(ctx, "user@example.com")
	if !ok {
		t.Fatal("Generate() ok = false, want true")
	}

	// Move the clock past the entry TTL
	m.now = func() time.Time { return time.Now().Add(DefaultTTL + time.Second) }

	if m.Verify(ctx, "user@example.com", code) {
		t.Error("Verify() = true for an expired code, want false")
	}
	if got := m.RemainingAttempts(ctx, "user@example.com"); got != 0 {
		t.Errorf("RemainingAttempts() after expiry = %d, want 0", got)
	}
}

func TestManager_AttemptExhaustion(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	code, ok := m.Generate(ctx, "a@b.com")
	if !ok {
		t.Fatal("Generate() ok = false, want true")
	}

	for i := 1; i <= DefaultMaxAttempts; i++ {
		if m.Verify(ctx, "a@b.com", "000000") {
			t.Fatalf("Verify() attempt %d = true, want false", i)
		}
	}

	// Entry was purged at the final failed attempt; even the correct code fails now
	if m.Verify(ctx, "a@b.com", code) {
		t.Error("Verify() with correct code after exhaustion = true, want false")
	}
}

func TestManager_RemainingAttempts(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	if got := m.RemainingAttempts(ctx, "user@example.com"); got != 0 {
		t.Errorf("RemainingAttempts() with no entry = %d, want 0", got)
	}

	if _, ok := m.Generate(ctx, "user@example.com"); !ok {
		t.Fatal("Generate() ok = false, want true")
	}
	if got := m.RemainingAttempts(ctx, "user@example.com"); got != DefaultMaxAttempts {
		t.Errorf("RemainingAttempts() = %d, want %d", got, DefaultMaxAttempts)
	}

	m.Verify(ctx, "user@example.com", "000000")
	if got := m.RemainingAttempts(ctx, "user@example.com"); got != DefaultMaxAttempts-1 {
		t.Errorf("RemainingAttempts() after one failure = %d, want %d", got, DefaultMaxAttempts-1)
	}
}

func TestManager_RateLimiting(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 1; i <= DefaultMaxPerWindow; i++ {
		code, ok := m.Generate(ctx, "user@example.com")
		if !ok {
			t.Fatalf("Generate() call %d ok = false, want true", i)
		}
		seen[code] = true
	}
	if len(seen) != DefaultMaxPerWindow {
		t.Errorf("distinct codes issued = %d, want %d", len(seen), DefaultMaxPerWindow)
	}
	if seen[""] {
		t.Error("Generate() issued an empty code")
	}

	if _, ok := m.Generate(ctx, "user@example.com"); ok {
		t.Error("Generate() beyond the window limit ok = true, want false")
	}
	if !m.IsRateLimited(ctx, "user@example.com") {
		t.Error("IsRateLimited() = false, want true")
	}

	// Other emails are unaffected
	if _, ok := m.Generate(ctx, "other@example.com"); !ok {
		t.Error("Generate() for a different email ok = false, want true")
	}
}

func TestManager_RateLimitWindowSlides(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	for i := 0; i < DefaultMaxPerWindow; i++ {
		if _, ok := m.Generate(ctx, "user@example.com"); !ok {
			t.Fatal("Generate() ok = false, want true")
		}
	}

	// Move the clock past the rate window; old requests fall out
	m.now = func() time.Time { return time.Now().Add(DefaultRateWindow + time.Second) }

	if m.IsRateLimited(ctx, "user@example.com") {
		t.Error("IsRateLimited() after the window slid = true, want false")
	}
	if _, ok := m.Generate(ctx, "user@example.com"); !ok {
		t.Error("Generate() after the window slid ok = false, want true")
	}
}

func TestManager_GenerateReplacesPriorCode(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	first, ok := m.Generate(ctx, "user@example.com")
	if !ok {
		t.Fatal("Generate() ok = false, want true")
	}
	second, ok := m.Generate(ctx, "user@example.com")
	if !ok {
		t.Fatal("second Generate() ok = false, want true")
	}

	if first != second && m.Verify(ctx, "user@example.com", first) {
		t.Error("Verify() accepted a replaced code, want false")
	}
	if !m.Verify(ctx, "user@example.com", second) {
		t.Error("Verify() rejected the replacement code, want true")
	}
}

func TestManager_ConcurrentVerifyRespectsAttemptCeiling(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	code, ok := m.Generate(ctx, "user@example.com")
	if !ok {
		t.Fatal("Generate() ok = false, want true")
	}

	const workers = 20
	var wg sync.WaitGroup
	results := make(chan bool, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- m.Verify(ctx, "user@example.com", "999999")
		}()
	}
	wg.Wait()
	close(results)

	for r := range results {
		if r {
			t.Error("concurrent Verify() with a wrong code returned true")
		}
	}

	// All attempts were consumed atomically; the correct code no longer works
	if m.Verify(ctx, "user@example.com", code) {
		t.Error("Verify() with correct code after concurrent exhaustion = true, want false")
	}
}

func TestManager_CleanupExpired(t *testing.T) {
	store := NewMemoryStore()
	m := NewManager(store, Config{}, testLogger(t))
	ctx := context.Background()

	if _, ok := m.Generate(ctx, "user@example.com"); !ok {
		t.Fatal("Generate() ok = false, want true")
	}

	m.now = func() time.Time { return time.Now().Add(DefaultRateWindow + time.Second) }
	m.CleanupExpired(ctx)

	entry, err := store.GetEntry(ctx, "user@example.com")
	if err != nil {
		t.Fatalf("GetEntry() error = %v", err)
	}
	if entry != nil {
		t.Error("expired entry survived CleanupExpired()")
	}

	count, err := store.CountRequestsSince(ctx, "user@example.com", time.Time{})
	if err != nil {
		t.Fatalf("CountRequestsSince() error = %v", err)
	}
	if count != 0 {
		t.Errorf("stale history survived CleanupExpired(), count = %d", count)
	}
}
