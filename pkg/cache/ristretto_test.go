package cache

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestCache(t *testing.T) *RistrettoCache {
	t.Helper()

	c, err := NewRistrettoCache(&RistrettoConfig{
		NumCounters: 1000,
		MaxCost:     100,
		BufferItems: 64,
		Logger:      zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("create cache: %v", err)
	}

	rc, ok := c.(*RistrettoCache)
	if !ok {
		t.Fatal("expected *RistrettoCache")
	}
	t.Cleanup(rc.Close)
	return rc
}

func TestRistrettoCache_SetGet(t *testing.T) {
	c := newTestCache(t)

	if !c.Set("k", "v", time.Minute) {
		t.Fatal("set rejected")
	}
	c.Wait()

	got, ok := c.Get("k")
	if !ok {
		t.Fatal("expected hit")
	}
	if got.(string) != "v" {
		t.Errorf("expected v, got %v", got)
	}
}

func TestRistrettoCache_Expiry(t *testing.T) {
	c := newTestCache(t)

	c.Set("k", 1, 10*time.Millisecond)
	c.Wait()

	time.Sleep(50 * time.Millisecond)

	_, ok := c.Get("k")
	if ok {
		t.Error("expected miss after ttl expiry")
	}
}

func TestRistrettoCache_Delete(t *testing.T) {
	c := newTestCache(t)

	c.Set("k", 1, time.Minute)
	c.Wait()
	c.Delete("k")

	_, ok := c.Get("k")
	if ok {
		t.Error("expected miss after delete")
	}
}
