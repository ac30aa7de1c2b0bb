package cache_test

import (
	"testing"
	"time"

	"github.com/dmwangi/taskhub/internal/cache"
)

func TestCache_SetGetDelete(t *testing.T) {
	c := cache.New(time.Minute)

	if _, ok := c.Get("missing"); ok {
		t.Fatalf("empty cache should miss")
	}

	c.Set("k", "v")

	got, ok := c.Get("k")
	if !ok || got != "v" {
		t.Fatalf("got (%v, %v), want (v, true)", got, ok)
	}

	c.Delete("k")

	if _, ok := c.Get("k"); ok {
		t.Fatalf("deleted key should miss")
	}
}

func TestCache_Expiry(t *testing.T) {
	c := cache.New(10 * time.Millisecond)

	c.Set("k", 1)

	time.Sleep(25 * time.Millisecond)

	if _, ok := c.Get("k"); ok {
		t.Fatalf("expired key should miss")
	}
}
