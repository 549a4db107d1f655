package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Zeeshan138063/digikey-client/pkg/catalog"
)

// setupTestRedis creates a test Redis client.
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

	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func TestManager_SetGet(t *testing.T) {
	client := setupTestRedis(t)
	manager := NewManager(client, time.Minute)
	ctx := context.Background()

	key := Key{ProductNumber: "FP034K-200-ND", ManufacturerID: 19}
	record := catalog.VendorRecord{
		"Product": map[string]any{
			"ManufacturerProductNumber": "FP-301",
			"QuantityAvailable":         float64(1200),
		},
	}

	if err := manager.Set(ctx, key, record); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := manager.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	product, ok := got["Product"].(map[string]any)
	if !ok {
		t.Fatalf("cached record lost structure: %#v", got)
	}
	if product["ManufacturerProductNumber"] != "FP-301" {
		t.Errorf("ManufacturerProductNumber = %v, want FP-301", product["ManufacturerProductNumber"])
	}
}

func TestManager_GetMiss(t *testing.T) {
	client := setupTestRedis(t)
	manager := NewManager(client, time.Minute)

	_, err := manager.Get(context.Background(), Key{ProductNumber: "missing"})
	if err != ErrCacheMiss {
		t.Errorf("Get on empty cache = %v, want ErrCacheMiss", err)
	}
}

func TestManager_TTLExpiry(t *testing.T) {
	client := setupTestRedis(t)
	manager := NewManager(client, 100*time.Millisecond)
	ctx := context.Background()

	key := Key{ProductNumber: "short-lived"}
	if err := manager.Set(ctx, key, catalog.VendorRecord{"x": "y"}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	time.Sleep(200 * time.Millisecond)

	if _, err := manager.Get(ctx, key); err != ErrCacheMiss {
		t.Errorf("Get after TTL = %v, want ErrCacheMiss", err)
	}
}

func TestManager_Delete(t *testing.T) {
	client := setupTestRedis(t)
	manager := NewManager(client, time.Minute)
	ctx := context.Background()

	key := Key{ProductNumber: "to-delete"}
	if err := manager.Set(ctx, key, catalog.VendorRecord{"x": "y"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := manager.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := manager.Get(ctx, key); err != ErrCacheMiss {
		t.Errorf("Get after Delete = %v, want ErrCacheMiss", err)
	}
}

func TestManager_SetNilRecord(t *testing.T) {
	client := setupTestRedis(t)
	manager := NewManager(client, time.Minute)

	if err := manager.Set(context.Background(), Key{ProductNumber: "nil"}, nil); err == nil {
		t.Error("expected error for nil record, got nil")
	}
}
