package cache

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// setupTestRedis connects to a local Redis and skips the test when none is
// running. The integration build tag runs the same flows against a container.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // Use a separate DB for tests
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}

	// Flush test DB before each test
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func TestNewManager(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	manager := NewManager(client, 0)
	if manager == nil {
		t.Fatal("NewManager returned nil")
	}
	if manager.redis != client {
		t.Error("Manager redis client not set correctly")
	}
	if manager.TTL() != DefaultTTL {
		t.Errorf("TTL() = %v, want %v", manager.TTL(), DefaultTTL)
	}
}

func TestNewManager_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewManager should panic with nil redis client")
		}
	}()
	NewManager(nil, time.Minute)
}

func TestManager_SetAndGet(t *testing.T) {
	client := setupTestRedis(t)
	runSetAndGet(t, NewManager(client, time.Minute))
}

func TestManager_Get_CacheMiss(t *testing.T) {
	client := setupTestRedis(t)
	manager := NewManager(client, time.Minute)

	_, err := manager.Get(context.Background(), CacheKey{Endpoint: "/nonexistent"})
	if err != ErrCacheMiss {
		t.Errorf("Expected ErrCacheMiss, got %v", err)
	}
}

func TestManager_Set_ExpiredEntry(t *testing.T) {
	client := setupTestRedis(t)
	manager := NewManager(client, time.Minute)
	ctx := context.Background()

	key := CacheKey{Endpoint: "/expired"}
	entry := &CacheEntry{
		Data:    []byte(`{"test": "data"}`),
		Expires: time.Now().Add(-1 * time.Hour),
	}

	// Set should not cache expired entries
	if err := manager.Set(ctx, key, entry); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if _, err := manager.Get(ctx, key); err != ErrCacheMiss {
		t.Errorf("Expected ErrCacheMiss for expired entry, got %v", err)
	}
}

func TestManager_Get_InvalidEntry(t *testing.T) {
	client := setupTestRedis(t)
	manager := NewManager(client, time.Minute)
	ctx := context.Background()

	key := CacheKey{Endpoint: "/corrupt"}
	if err := client.Set(ctx, key.String(), "not json", time.Minute).Err(); err != nil {
		t.Fatalf("raw set failed: %v", err)
	}

	if _, err := manager.Get(ctx, key); !errors.Is(err, ErrInvalidEntry) {
		t.Errorf("Expected ErrInvalidEntry for corrupt entry, got %v", err)
	}

	// The corrupt entry is dropped on read
	if _, err := manager.Get(ctx, key); err != ErrCacheMiss {
		t.Errorf("Expected ErrCacheMiss after corrupt read, got %v", err)
	}
}

func TestManager_Purge(t *testing.T) {
	client := setupTestRedis(t)
	runPurge(t, client, NewManager(client, time.Minute))
}

func TestManager_Delete(t *testing.T) {
	client := setupTestRedis(t)
	runDelete(t, NewManager(client, time.Minute))
}

func TestManager_Set_NilEntry(t *testing.T) {
	client := setupTestRedis(t)
	manager := NewManager(client, time.Minute)

	if err := manager.Set(context.Background(), CacheKey{Endpoint: "/nil"}, nil); err == nil {
		t.Error("Set with nil entry should return error")
	}
}

// runSetAndGet is shared with the container-backed integration test.
func runSetAndGet(t *testing.T, manager *Manager) {
	t.Helper()
	ctx := context.Background()

	key := CacheKey{Endpoint: "https://be.guide.104.com.tw/wow/jobCard/job"}
	entry := NewEntry([]byte(`{"jobCode": "2007001004"}`), 200, manager.TTL())

	if err := manager.Set(ctx, key, entry); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	retrieved, err := manager.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if string(retrieved.Data) != string(entry.Data) {
		t.Errorf("Data mismatch: got %s, want %s", retrieved.Data, entry.Data)
	}
	if retrieved.StatusCode != entry.StatusCode {
		t.Errorf("StatusCode mismatch: got %d, want %d", retrieved.StatusCode, entry.StatusCode)
	}
}

func runDelete(t *testing.T, manager *Manager) {
	t.Helper()
	ctx := context.Background()

	key := CacheKey{Endpoint: "/delete-me"}
	if err := manager.Set(ctx, key, NewEntry([]byte(`{}`), 200, time.Minute)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if _, err := manager.Get(ctx, key); err != nil {
		t.Fatalf("Get after Set failed: %v", err)
	}

	if err := manager.Delete(ctx, key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, err := manager.Get(ctx, key); err != ErrCacheMiss {
		t.Errorf("Expected ErrCacheMiss after Delete, got %v", err)
	}
}

func runPurge(t *testing.T, client *redis.Client, manager *Manager) {
	t.Helper()
	ctx := context.Background()

	for _, code := range []string{"2007001004", "2007001006", "2007001010"} {
		key := CacheKey{
			Endpoint:    "https://be.guide.104.com.tw/wow/jobCard/job",
			QueryParams: url.Values{"jobCode": []string{code}},
		}
		if err := manager.Set(ctx, key, NewEntry([]byte(`{}`), 200, time.Minute)); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}
	if err := client.Set(ctx, "unrelated", "keep", time.Minute).Err(); err != nil {
		t.Fatalf("raw set failed: %v", err)
	}

	deleted, err := manager.Purge(ctx)
	if err != nil {
		t.Fatalf("Purge failed: %v", err)
	}
	if deleted != 3 {
		t.Errorf("Purge deleted %d keys, want 3", deleted)
	}

	if got := client.Get(ctx, "unrelated").Val(); got != "keep" {
		t.Errorf("unrelated key = %q, want it untouched", got)
	}

	deleted, err = manager.Purge(ctx)
	if err != nil {
		t.Fatalf("second Purge failed: %v", err)
	}
	if deleted != 0 {
		t.Errorf("second Purge deleted %d keys, want 0", deleted)
	}
}
