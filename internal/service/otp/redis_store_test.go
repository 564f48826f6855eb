package otp

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"be-auth/pkg/redis"
)

func testRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	client := redis.NewClientFromRedis(rdb, "test", zap.NewNop())
	return NewRedisStore(client, DefaultRateWindow), mr
}

func TestRedisStore_EntryRoundTrip(t *testing.T) {
	store, _ := testRedisStore(t)
	ctx := context.Background()

	entry, err := store.GetEntry(ctx, "user@example.com")
	if err != nil {
		t.Fatalf("GetEntry() error = %v", err)
	}
	if entry != nil {
		t.Fatal("GetEntry() with no entry != nil, want nil")
	}

	now := time.Now().Truncate(time.Second)
	put := &Entry{
		Code:      "123456",
		Email:     "user@example.com",
		CreatedAt: now,
		ExpiresAt: now.Add(DefaultTTL),
		Attempts:  2,
	}
	if err := store.PutEntry(ctx, "user@example.com", put); err != nil {
		t.Fatalf("PutEntry() error = %v", err)
	}

	got, err := store.GetEntry(ctx, "user@example.com")
	if err != nil {
		t.Fatalf("GetEntry() error = %v", err)
	}
	if got == nil {
		t.Fatal("GetEntry() = nil after PutEntry()")
	}
	if got.Code != put.Code || got.Attempts != put.Attempts {
		t.Errorf("GetEntry() = %+v, want code %q attempts %d", got, put.Code, put.Attempts)
	}

	if err := store.RemoveEntry(ctx, "user@example.com"); err != nil {
		t.Fatalf("RemoveEntry() error = %v", err)
	}
	got, err = store.GetEntry(ctx, "user@example.com")
	if err != nil {
		t.Fatalf("GetEntry() error = %v", err)
	}
	if got != nil {
		t.Error("GetEntry() after RemoveEntry() != nil, want nil")
	}
}

func TestRedisStore_EntryExpiresWithTTL(t *testing.T) {
	store, mr := testRedisStore(t)
	ctx := context.Background()

	now := time.Now()
	put := &Entry{
		Code:      "123456",
		Email:     "user@example.com",
		CreatedAt: now,
		ExpiresAt: now.Add(time.Minute),
	}
	if err := store.PutEntry(ctx, "user@example.com", put); err != nil {
		t.Fatalf("PutEntry() error = %v", err)
	}

	mr.FastForward(2 * time.Minute)

	got, err := store.GetEntry(ctx, "user@example.com")
	if err != nil {
		t.Fatalf("GetEntry() error = %v", err)
	}
	if got != nil {
		t.Error("entry survived its TTL, want nil")
	}
}

func TestRedisStore_RequestHistory(t *testing.T) {
	store, _ := testRedisStore(t)
	ctx := context.Background()

	base := time.Now()
	for i := 0; i < 3; i++ {
		if err := store.AppendRequest(ctx, "user@example.com", base.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("AppendRequest() error = %v", err)
		}
	}

	count, err := store.CountRequestsSince(ctx, "user@example.com", base)
	if err != nil {
		t.Fatalf("CountRequestsSince() error = %v", err)
	}
	if count != 3 {
		t.Errorf("CountRequestsSince() = %d, want 3", count)
	}

	// A later cutoff prunes the first two timestamps
	count, err = store.CountRequestsSince(ctx, "user@example.com", base.Add(90*time.Second))
	if err != nil {
		t.Fatalf("CountRequestsSince() error = %v", err)
	}
	if count != 1 {
		t.Errorf("CountRequestsSince() after pruning = %d, want 1", count)
	}

	// Pruned timestamps stay gone even for an earlier cutoff
	count, err = store.CountRequestsSince(ctx, "user@example.com", base)
	if err != nil {
		t.Fatalf("CountRequestsSince() error = %v", err)
	}
	if count != 1 {
		t.Errorf("CountRequestsSince() after re-widening = %d, want 1", count)
	}
}

func TestManager_OverRedisStore(t *testing.T) {
	store, _ := testRedisStore(t)
	m := NewManager(store, Config{}, testLogger(t))
	ctx := context.Background()

	code, ok := m.Generate(ctx, "user@example.com")
	if !ok {
		t.Fatal("Generate() ok = false, want true")
	}
	if !m.Verify(ctx, "user@example.com", code) {
		t.Error("Verify() = false, want true")
	}
	if m.Verify(ctx, "user@example.com", code) {
		t.Error("second Verify() = true, want false")
	}
}
