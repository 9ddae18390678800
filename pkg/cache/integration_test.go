//go:build integration

package cache

import (
	"context"
	"os"
	"testing"
	"time"
)

// Run with: go test -tags integration ./pkg/cache
// DRL3D_REDIS_URL and DRL3D_MONGO_URL select the servers.

func exerciseCache(t *testing.T, c Cache) {
	t.Helper()
	ctx := context.Background()
	key := "drl3d-test:" + t.Name()
	t.Cleanup(func() { _ = c.Delete(ctx, key) })

	if err := c.Set(ctx, key, []byte("payload"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	data, hit, err := c.Get(ctx, key)
	if err != nil || !hit || string(data) != "payload" {
		t.Fatalf("Get = %q, %v, %v", data, hit, err)
	}
	if err := c.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, hit, _ := c.Get(ctx, key); hit {
		t.Error("Get after Delete hit")
	}
}

func TestRedisCacheIntegration(t *testing.T) {
	url := os.Getenv("DRL3D_REDIS_URL")
	if url == "" {
		t.Skip("DRL3D_REDIS_URL not set")
	}
	c, err := NewRedisCache(context.Background(), url)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	exerciseCache(t, c)
}

func TestMongoCacheIntegration(t *testing.T) {
	url := os.Getenv("DRL3D_MONGO_URL")
	if url == "" {
		t.Skip("DRL3D_MONGO_URL not set")
	}
	c, err := NewMongoCache(context.Background(), url, "", "cache_test")
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	exerciseCache(t, c)
}
