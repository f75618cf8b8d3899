package cache

import (
	"testing"
	"time"
)

func TestGetPut(t *testing.T) {
	c := New(time.Minute, 10)
	if _, ok := c.Get("ecdh", "0xabc"); ok {
		t.Fatal("empty cache returned a hit")
	}
	c.Put("ecdh", "0xabc", "02aa")
	got, ok := c.Get("ecdh", "0xabc")
	if !ok || got != "02aa" {
		t.Fatalf("Get = %q, %v", got, ok)
	}
	// Same subject under a different name is a distinct entry.
	if _, ok := c.Get("other", "0xabc"); ok {
		t.Fatal("name is not part of the key")
	}
}

func TestExpiry(t *testing.T) {
	c := New(time.Minute, 10)
	base := time.Now()
	c.now = func() time.Time { return base }
	c.Put("ecdh", "0xabc", "02aa")

	c.now = func() time.Time { return base.Add(59 * time.Second) }
	if _, ok := c.Get("ecdh", "0xabc"); !ok {
		t.Fatal("entry expired early")
	}
	c.now = func() time.Time { return base.Add(61 * time.Second) }
	if _, ok := c.Get("ecdh", "0xabc"); ok {
		t.Fatal("entry outlived its ttl")
	}
	if c.Len() != 0 {
		t.Fatalf("expired entry not removed, len = %d", c.Len())
	}
}

func TestEvictionAtCapacity(t *testing.T) {
	c := New(time.Minute, 2)
	base := time.Now()
	c.now = func() time.Time { return base }
	c.Put("n", "a", "1")
	c.now = func() time.Time { return base.Add(time.Second) }
	c.Put("n", "b", "2")
	c.now = func() time.Time { return base.Add(2 * time.Second) }
	c.Put("n", "c", "3")

	if c.Len() != 2 {
		t.Fatalf("len = %d, want 2", c.Len())
	}
	if _, ok := c.Get("n", "a"); ok {
		t.Fatal("oldest entry survived eviction")
	}
	if _, ok := c.Get("n", "c"); !ok {
		t.Fatal("newest entry evicted")
	}
}

func TestInvalidate(t *testing.T) {
	c := New(time.Minute, 10)
	c.Put("ecdh", "0xabc", "02aa")
	c.Put("ecdh", "0xdef", "02bb")
	c.Put("proof", "0xabc", "x")

	c.Invalidate("ecdh", "0xabc")
	if _, ok := c.Get("ecdh", "0xabc"); ok {
		t.Fatal("invalidated entry still present")
	}
	c.InvalidateName("ecdh")
	if _, ok := c.Get("ecdh", "0xdef"); ok {
		t.Fatal("InvalidateName left an entry")
	}
	if _, ok := c.Get("proof", "0xabc"); !ok {
		t.Fatal("InvalidateName removed an unrelated name")
	}
}
